package game

// Synthetic is a deterministic game used to drive the search tree without a
// real move generator. Every position is identified by a 64-bit key; the
// number of legal moves and the final outcome are derived from that key.
type Synthetic struct {
	key       uint64
	ply       int
	rule50    int
	branching int
	maxPly    int
}

// NewSynthetic returns the start position of a synthetic game. Positions have
// between 1 and branching legal moves and the game ends after at most maxPly
// plies.
func NewSynthetic(seed uint64, branching, maxPly int) *Synthetic {
	if branching < 1 || branching > 64 {
		panic("branching factor must be in [1, 64]")
	}
	return &Synthetic{key: mix(seed), branching: branching, maxPly: maxPly}
}

func (s *Synthetic) Key() uint64 {
	return s.key
}

func (s *Synthetic) LegalMoves() []Move {
	if s.final() {
		return nil
	}
	count := 1 + int(s.key%uint64(s.branching))
	moves := make([]Move, count)
	for i := range moves {
		to := uint8((s.key >> (i % 58)) & 63)
		moves[i] = NewMove(uint8(i), to, NoPromotion)
	}
	return moves
}

func (s *Synthetic) Play(move Move) Position {
	next := *s
	next.key = mix(s.key ^ uint64(move))
	next.ply++
	next.rule50++
	if move.To()%8 == 0 {
		next.rule50 = 0
	}
	return &next
}

// final reports whether the game is over. Besides the ply limit a small share
// of positions end the game early.
func (s *Synthetic) final() bool {
	if s.ply >= s.maxPly {
		return true
	}
	return s.ply > 2 && s.key%23 == 0
}

func (s *Synthetic) Outcome() GameResult {
	if !s.final() {
		return Undecided
	}
	switch (s.key >> 8) % 3 {
	case 0:
		return WhiteWon
	case 1:
		return BlackWon
	default:
		return Draw
	}
}

func (s *Synthetic) IsBlackToMove() bool {
	return s.ply%2 == 1
}

func (s *Synthetic) Rule50Ply() int {
	return s.rule50
}

func (s *Synthetic) GamePly() int {
	return s.ply
}

func (s *Synthetic) Castlings() Castlings {
	return Castlings{
		WeCanOO:       s.ply < 10,
		TheyCanOO:     s.ply < 10,
		QueensideRook: 0,
		KingsideRook:  7,
	}
}

func (s *Synthetic) EnPassant() uint64 {
	return 0
}

func (s *Synthetic) Equal(other Position) bool {
	o, ok := other.(*Synthetic)
	if !ok {
		return false
	}
	return s.key == o.key && s.ply == o.ply && s.rule50 == o.rule50
}

// mix is the splitmix64 finalizer.
func mix(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}
