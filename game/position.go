package game

// Castlings holds the castling rights of a position, seen from the side to
// move.
type Castlings struct {
	WeCanOOO   bool
	WeCanOO    bool
	TheyCanOOO bool
	TheyCanOO  bool
	// Rook files, used by formats that support Chess960 castling
	QueensideRook uint8
	KingsideRook  uint8
}

// Position is the game position collaborator of the search tree. Moves
// returned by LegalMoves and accepted by Play are normalized to the side to
// move.
type Position interface {
	LegalMoves() []Move
	Play(move Move) Position
	IsBlackToMove() bool
	// Outcome is the absolute result of the game if the position is final,
	// Undecided otherwise
	Outcome() GameResult
	Rule50Ply() int
	GamePly() int
	Castlings() Castlings
	// EnPassant is a bitboard of the en passant target, zero if none
	EnPassant() uint64
	Equal(other Position) bool
}

// Repeater is implemented by positions that track repetitions of earlier
// positions in the game.
type Repeater interface {
	Repetitions() int
}

// History is the sequence of positions of the game played so far.
type History struct {
	positions []Position
}

func NewHistory(start Position) *History {
	return &History{positions: []Position{start}}
}

// Reset discards all positions and starts over from start.
func (h *History) Reset(start Position) {
	h.positions = append(h.positions[:0], start)
}

// Append plays move on the last position.
func (h *History) Append(move Move) {
	h.positions = append(h.positions, h.Last().Play(move))
}

func (h *History) Starting() Position {
	if len(h.positions) == 0 {
		return nil
	}
	return h.positions[0]
}

func (h *History) Last() Position {
	if len(h.positions) == 0 {
		return nil
	}
	return h.positions[len(h.positions)-1]
}

func (h *History) Len() int {
	return len(h.positions)
}

// At returns the i-th position counted from the start.
func (h *History) At(i int) Position {
	return h.positions[i]
}

func (h *History) IsBlackToMove() bool {
	return h.Last().IsBlackToMove()
}
