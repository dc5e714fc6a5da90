package game

import (
	"errors"
	"fmt"
)

// Move is a 16-bit encoded move: bits 0-5 destination square, bits 6-11
// origin square, bits 12-14 promotion piece. Moves stored in the tree are
// normalized to the side to move.
type Move uint16

type Promotion uint8

const (
	NoPromotion Promotion = iota
	Knight
	Bishop
	Rook
	Queen
)

const (
	toMask   = 0x003F
	fromMask = 0x0FC0
	promMask = 0x7000
)

func NewMove(from, to uint8, promotion Promotion) Move {
	return Move(uint16(to&63) | uint16(from&63)<<6 | uint16(promotion&7)<<12)
}

func (m Move) From() uint8 {
	return uint8((m & fromMask) >> 6)
}

func (m Move) To() uint8 {
	return uint8(m & toMask)
}

func (m Move) Promotion() Promotion {
	return Promotion((m & promMask) >> 12)
}

// Mirror flips the move vertically, turning a move of one side into the same
// move seen from the other side.
func (m Move) Mirror() Move {
	return m ^ Move(0x0E38)
}

func (m Move) String() string {
	s := fmt.Sprintf("%s%s", square(m.From()), square(m.To()))
	switch m.Promotion() {
	case Knight:
		s += "n"
	case Bishop:
		s += "b"
	case Rook:
		s += "r"
	case Queen:
		s += "q"
	}
	return s
}

func square(sq uint8) string {
	return string([]byte{'a' + sq%8, '1' + sq/8})
}

var ErrInvalidMove = errors.New("invalid move")

// ParseMove reads a move in coordinate notation, such as e2e4 or e7e8q.
func ParseMove(s string) (Move, error) {
	if len(s) != 4 && len(s) != 5 {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidMove)
	}
	from, ok := parseSquare(s[0:2])
	if !ok {
		return 0, fmt.Errorf("%q: bad origin square: %w", s, ErrInvalidMove)
	}
	to, ok := parseSquare(s[2:4])
	if !ok {
		return 0, fmt.Errorf("%q: bad destination square: %w", s, ErrInvalidMove)
	}
	promotion := NoPromotion
	if len(s) == 5 {
		switch s[4] {
		case 'n':
			promotion = Knight
		case 'b':
			promotion = Bishop
		case 'r':
			promotion = Rook
		case 'q':
			promotion = Queen
		default:
			return 0, fmt.Errorf("%q: bad promotion: %w", s, ErrInvalidMove)
		}
	}
	return NewMove(from, to, promotion), nil
}

func parseSquare(s string) (uint8, bool) {
	file, rank := s[0], s[1]
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return 0, false
	}
	return (rank-'1')*8 + file - 'a', true
}
