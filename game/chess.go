package game

import (
	"fmt"

	chess "github.com/IlikeChooros/dragontoothmg"
)

// castling right bits
const (
	whiteOO uint8 = 1 << iota
	whiteOOO
	blackOO
	blackOOO
	allCastlings = whiteOO | whiteOOO | blackOO | blackOOO
)

// Chess is a standard chess position. Move generation is done by
// dragontoothmg; the board is rebuilt from the move list, so a Chess value is
// immutable and can be shared between goroutines.
type Chess struct {
	moves       []chess.Move
	legal       []chess.Move
	keys        []uint64 // position hashes from the start, the last is this position
	castlings   uint8
	enPassant   uint8 // target square, zero if none
	rule50      int
	repetitions int
	outcome     GameResult
}

// NewChess returns the standard start position.
func NewChess() *Chess {
	return replay(nil)
}

func replay(moves []chess.Move) *Chess {
	c := &Chess{moves: moves, castlings: allCastlings}
	board := chess.NewBoard()
	c.keys = append(make([]uint64, 0, len(moves)+1), board.Hash())
	for i := range moves {
		c.track(board, moves[i])
		board.Make(moves[i])
		c.keys = append(c.keys, board.Hash())
	}
	c.repetitions = c.countRepetitions()

	c.legal = board.GenerateLegalMoves()
	switch {
	case board.IsTerminated(len(c.legal)):
		c.outcome = Draw
		if board.Termination() == chess.TerminationCheckmate {
			c.outcome = WhiteWon
			if board.Wtomove {
				c.outcome = BlackWon
			}
		}
	case c.rule50 >= 100, c.repetitions >= 2:
		c.outcome = Draw
	}
	if c.outcome != Undecided {
		c.legal = nil
	}
	return c
}

// track updates the castling rights, en passant target and rule 50 counter
// for move m about to be made on board.
func (c *Chess) track(board *chess.Board, m chess.Move) {
	us, them := &board.White, &board.Black
	if !board.Wtomove {
		us, them = &board.Black, &board.White
	}
	move := absolute(m)
	from, to := move.From(), move.To()

	pawn := us.Pawns&(1<<from) != 0
	capture := them.All&(1<<to) != 0
	c.enPassant = 0
	if pawn && (int(to)-int(from) == 16 || int(from)-int(to) == 16) {
		c.enPassant = (from + to) / 2
	}
	c.rule50++
	if pawn || capture {
		c.rule50 = 0
	}
	for _, sq := range [2]uint8{from, to} {
		switch sq {
		case 4:
			c.castlings &^= whiteOO | whiteOOO
		case 7:
			c.castlings &^= whiteOO
		case 0:
			c.castlings &^= whiteOOO
		case 60:
			c.castlings &^= blackOO | blackOOO
		case 63:
			c.castlings &^= blackOO
		case 56:
			c.castlings &^= blackOOO
		}
	}
}

// countRepetitions counts earlier occurrences of the position since the last
// capture or pawn move.
func (c *Chess) countRepetitions() int {
	last := len(c.keys) - 1
	count := 0
	for i := last - 4; i >= 0 && last-i <= c.rule50; i -= 2 {
		if c.keys[i] == c.keys[last] {
			count++
		}
	}
	return count
}

// absolute converts a generator move to this package's encoding, seen from
// white.
func absolute(m chess.Move) Move {
	move, err := ParseMove(m.String())
	if err != nil {
		panic(fmt.Sprintf("move generator produced %q: %v", m.String(), err))
	}
	return move
}

func (c *Chess) Key() uint64 {
	return c.keys[len(c.keys)-1]
}

// Repetitions is the number of times the position occurred before. A third
// occurrence ends the game in a draw.
func (c *Chess) Repetitions() int {
	return c.repetitions
}

func (c *Chess) LegalMoves() []Move {
	moves := make([]Move, len(c.legal))
	for i := range c.legal {
		moves[i] = c.normalize(absolute(c.legal[i]))
	}
	return moves
}

// Play panics if move is not legal in this position.
func (c *Chess) Play(move Move) Position {
	move = c.normalize(move)
	for i := range c.legal {
		if absolute(c.legal[i]) == move {
			moves := make([]chess.Move, len(c.moves), len(c.moves)+1)
			copy(moves, c.moves)
			return replay(append(moves, c.legal[i]))
		}
	}
	panic(fmt.Sprintf("illegal move %s at ply %d", move, len(c.moves)))
}

// normalize mirrors moves of black; it is its own inverse.
func (c *Chess) normalize(move Move) Move {
	if c.IsBlackToMove() {
		return move.Mirror()
	}
	return move
}

func (c *Chess) IsBlackToMove() bool {
	return len(c.moves)%2 == 1
}

func (c *Chess) Outcome() GameResult {
	return c.outcome
}

func (c *Chess) Rule50Ply() int {
	return c.rule50
}

func (c *Chess) GamePly() int {
	return len(c.moves)
}

func (c *Chess) Castlings() Castlings {
	castlings := Castlings{
		WeCanOO:       c.castlings&whiteOO != 0,
		WeCanOOO:      c.castlings&whiteOOO != 0,
		TheyCanOO:     c.castlings&blackOO != 0,
		TheyCanOOO:    c.castlings&blackOOO != 0,
		QueensideRook: 0,
		KingsideRook:  7,
	}
	if c.IsBlackToMove() {
		castlings.WeCanOO, castlings.TheyCanOO = castlings.TheyCanOO, castlings.WeCanOO
		castlings.WeCanOOO, castlings.TheyCanOOO = castlings.TheyCanOOO, castlings.WeCanOOO
	}
	return castlings
}

func (c *Chess) EnPassant() uint64 {
	if c.enPassant == 0 {
		return 0
	}
	return 1 << c.enPassant
}

func (c *Chess) Equal(other Position) bool {
	o, ok := other.(*Chess)
	if !ok || len(c.moves) != len(o.moves) {
		return false
	}
	for i := range c.moves {
		if c.moves[i] != o.moves[i] {
			return false
		}
	}
	return true
}
