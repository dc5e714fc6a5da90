package training

import (
	"errors"
	"fmt"
	"math/bits"

	"lctree/game"
	"lctree/searcher"
)

const (
	Version          = 5
	NumProbabilities = 1858
	NumPlanes        = 104
)

// ErrInvalidSearch is returned when a node has no visits below it although
// more than one move was legal.
var ErrInvalidSearch = errors.New("search generated invalid data")

type InputFormat uint32

const (
	InputClassical InputFormat = iota + 1
	InputWithCastlingPlane
	InputWithCanonicalization
	InputWithCanonicalizationHectoplies
)

// Is960Castling reports whether castling rights are sent as rook masks.
func (f InputFormat) Is960Castling() bool {
	return f >= InputWithCastlingPlane
}

func (f InputFormat) IsCanonical() bool {
	return f >= InputWithCanonicalization
}

// FlipTransform is set in a transform when the board was mirrored
// horizontally.
const FlipTransform = 1

// Encoder turns a game history into network input planes.
type Encoder interface {
	Format() InputFormat
	// Encode returns the planes of the last position and the transform that
	// was applied to them
	Encode(history *game.History) (planes [NumPlanes]uint64, transform int)
	// MoveIndex maps a move to its index in the probability vector
	MoveIndex(move game.Move, transform int) int
}

// Best holds the statistics of the move that was chosen.
type Best struct {
	Q float32
	D float32
	M float32
}

// V5TrainingData is one training position. The layout is fixed; records are
// written little-endian without padding.
type V5TrainingData struct {
	Version               uint32
	InputFormat           uint32
	Probabilities         [NumProbabilities]float32
	Planes                [NumPlanes]uint64
	CastlingUsOOO         uint8
	CastlingUsOO          uint8
	CastlingThemOOO       uint8
	CastlingThemOO        uint8
	SideToMoveOrEnpassant uint8
	Rule50Count           uint8
	InvarianceInfo        uint8
	Result                int8
	RootQ                 float32
	BestQ                 float32
	RootD                 float32
	BestD                 float32
	RootM                 float32
	BestM                 float32
	PliesLeft             float32
}

// FromNode builds the training record of the position at node. The
// probabilities are the visit shares of the node's children.
func FromNode(node *searcher.Node, result game.GameResult, history *game.History, enc Encoder, best Best) (*V5TrainingData, error) {
	totalN := node.ChildrenVisits()
	// a single legal move may be played without any search
	if totalN == 0 && node.NumEdges() != 1 {
		return nil, fmt.Errorf("node with %d edges has no visits: %w", node.NumEdges(), ErrInvalidSearch)
	}

	format := enc.Format()
	data := &V5TrainingData{
		Version:     Version,
		InputFormat: uint32(format),
	}

	planes, transform := enc.Encode(history)
	for i, plane := range planes {
		data.Planes[i] = reverseBitsInBytes(plane)
	}

	for i := range data.Probabilities {
		data.Probabilities[i] = -1
	}
	for _, child := range node.Edges() {
		prob := float32(1)
		if totalN > 0 {
			prob = float32(child.N()) / float32(totalN)
		}
		data.Probabilities[enc.MoveIndex(child.Move(false), transform)] = prob
	}

	position := history.Last()
	castlings := position.Castlings()
	queenSide, kingSide := uint8(1), uint8(1)
	if format.Is960Castling() {
		queenSide <<= castlings.QueensideRook
		kingSide <<= castlings.KingsideRook
	}
	data.CastlingUsOOO = flag(castlings.WeCanOOO, queenSide)
	data.CastlingUsOO = flag(castlings.WeCanOO, kingSide)
	data.CastlingThemOOO = flag(castlings.TheyCanOOO, queenSide)
	data.CastlingThemOO = flag(castlings.TheyCanOO, kingSide)

	if format.IsCanonical() {
		data.SideToMoveOrEnpassant = uint8(position.EnPassant() >> 56)
		if transform&FlipTransform != 0 {
			data.SideToMoveOrEnpassant = bits.Reverse8(data.SideToMoveOrEnpassant)
		}
		// the transform lets a rescorer recover the real moves
		data.InvarianceInfo = uint8(transform) | flag(position.IsBlackToMove(), 1<<7)
	} else {
		data.SideToMoveOrEnpassant = flag(position.IsBlackToMove(), 1)
	}

	data.Rule50Count = uint8(min(position.Rule50Ply(), 255))
	data.SetResult(result, position.IsBlackToMove())

	data.RootQ = float32(-node.WL())
	data.BestQ = best.Q
	data.RootD = float32(node.D())
	data.BestD = best.D
	data.RootM = float32(node.M())
	data.BestM = best.M
	// known only once the game is over
	data.PliesLeft = 0
	return data, nil
}

// SetResult stores the game result relative to the side to move.
func (d *V5TrainingData) SetResult(result game.GameResult, blackToMove bool) {
	switch result {
	case game.WhiteWon:
		d.Result = 1
	case game.BlackWon:
		d.Result = -1
	default:
		d.Result = 0
	}
	if blackToMove {
		d.Result = -d.Result
	}
}

func flag(set bool, value uint8) uint8 {
	if set {
		return value
	}
	return 0
}

// reverseBitsInBytes mirrors a bitboard horizontally.
func reverseBitsInBytes(v uint64) uint64 {
	return bits.ReverseBytes64(bits.Reverse64(v))
}
