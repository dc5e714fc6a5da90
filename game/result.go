package game

// GameResult is the outcome of a game. The ordering BlackWon < Draw < WhiteWon
// is relied upon when combining bounds.
type GameResult uint8

const (
	Undecided GameResult = iota
	BlackWon
	Draw
	WhiteWon
)

// Negate returns the same result seen from the other side.
func (r GameResult) Negate() GameResult {
	switch r {
	case WhiteWon:
		return BlackWon
	case BlackWon:
		return WhiteWon
	default:
		return r
	}
}

func (r GameResult) String() string {
	switch r {
	case BlackWon:
		return "0-1"
	case Draw:
		return "1/2-1/2"
	case WhiteWon:
		return "1-0"
	default:
		return "*"
	}
}
