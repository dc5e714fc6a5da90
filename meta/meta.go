// meta/meta.go
package meta

import "time"

// GO_ROUTINES defines the number of search goroutines per move.
const GO_ROUTINES = 8

// EPISODES defines the number of episodes searched per move.
const EPISODES = 800

// SOLID_THRESHOLD defines the visit count at which a node's children are
// compacted.
const SOLID_THRESHOLD = 100

// MAX_TURNS caps the length of a self-play game.
const MAX_TURNS = 300

// STABILIZE_INTERVAL defines how many episodes pass between two
// stabilizations of the root value.
const STABILIZE_INTERVAL = 64

// GC_INTERVAL defines the pause between two reclaimer sweeps.
const GC_INTERVAL = 100 * time.Millisecond
