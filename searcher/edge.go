package searcher

import (
	"fmt"
	"math"
	"sync/atomic"

	"lctree/game"
)

// Edge is a legal move out of a node together with its prior. The prior is
// kept in a 16-bit compressed form.
type Edge struct {
	move   game.Move
	p      atomic.Uint32 // compressed prior, low 16 bits
	policy atomic.Uint32 // float32 bits of the RENTS policy
}

// pRounding adds half a unit of the retained precision and removes the bias
// of the exponent range that is dropped.
const pRounding int32 = 1<<11 - 3<<28

// EdgesFromMoves allocates one edge per move. The slice never changes length.
func EdgesFromMoves(moves []game.Move) []Edge {
	edges := make([]Edge, len(moves))
	for i, m := range moves {
		edges[i].move = m
	}
	return edges
}

// Move returns the edge's move. If asOpponent is set the move is mirrored to
// the other side's orientation.
func (e *Edge) Move(asOpponent bool) game.Move {
	if asOpponent {
		return e.move.Mirror()
	}
	return e.move
}

// SetP stores p in [0, 1] with about 11 bits of significand precision.
// Values below the smallest representable prior are clamped to it.
func (e *Edge) SetP(p float32) {
	if p < 0 || p > 1 {
		panic(fmt.Sprintf("prior %v out of range [0, 1]", p))
	}
	e.p.Store(uint32(compressP(p)))
}

func (e *Edge) P() float32 {
	return decompressP(uint16(e.p.Load()))
}

func (e *Edge) Policy() float32 {
	return math.Float32frombits(e.policy.Load())
}

func (e *Edge) SetPolicy(policy float32) {
	e.policy.Store(math.Float32bits(policy))
}

func (e *Edge) String() string {
	return fmt.Sprintf("Move: %s p: %.5f policy: %.5f", e.move, e.P(), e.Policy())
}

func compressP(p float32) uint16 {
	tmp := int32(math.Float32bits(p)) + pRounding
	if tmp < 0 {
		return 0
	}
	return uint16(tmp >> 12)
}

func decompressP(code uint16) float32 {
	return math.Float32frombits(uint32(code)<<12 | 3<<28)
}
