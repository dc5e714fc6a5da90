package metrics

import (
	"sync/atomic"
	"time"
)

type SearchMetric struct {
	Goroutines   int
	Duration     time.Duration
	Episodes     int
	Collisions   int
	SolidNodes   int
	RootVisits   int
	IsTreeReused bool
}

type MoveMetric struct {
	Step        int
	BlackToMove bool
	Move        string
	SearchMetric
}

type GameMetric struct {
	Seed       uint64
	Result     string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	TotalMoves int
}

// Collector accumulates the metrics of a single search. It also forwards
// them to the process-wide tree metrics if those are set.
type Collector interface {
	Start(goroutines int)
	SetTreeReused(value bool)
	AddEpisode()
	AddCollision()
	AddSolid(ok bool)
	SetRootVisits(visits int)
	Complete() SearchMetric
}

type collector struct {
	tree         *TreeMetrics
	goroutines   int
	startTime    time.Time
	episodes     atomic.Int32
	collisions   atomic.Int32
	solidNodes   atomic.Int32
	rootVisits   atomic.Int32
	isTreeReused atomic.Bool
}

func NewCollector(tree *TreeMetrics) Collector {
	return &collector{tree: tree}
}

func (m *collector) Start(goroutines int) {
	m.startTime = time.Now()
	m.goroutines = goroutines
	m.episodes.Store(0)
	m.collisions.Store(0)
	m.solidNodes.Store(0)
	m.rootVisits.Store(0)
	m.isTreeReused.Store(false)
}

func (m *collector) SetTreeReused(value bool) {
	m.isTreeReused.Store(value)
}

func (m *collector) AddEpisode() {
	m.episodes.Add(1)
	m.tree.Episode()
}

func (m *collector) AddCollision() {
	m.collisions.Add(1)
	m.tree.Collision()
}

func (m *collector) AddSolid(ok bool) {
	if ok {
		m.solidNodes.Add(1)
	}
	m.tree.SolidConversion(ok)
}

func (m *collector) SetRootVisits(visits int) {
	m.rootVisits.Store(int32(visits))
}

func (m *collector) Complete() SearchMetric {
	return SearchMetric{
		Goroutines:   m.goroutines,
		Duration:     time.Since(m.startTime),
		Episodes:     int(m.episodes.Load()),
		Collisions:   int(m.collisions.Load()),
		SolidNodes:   int(m.solidNodes.Load()),
		RootVisits:   int(m.rootVisits.Load()),
		IsTreeReused: m.isTreeReused.Load(),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(goroutines int)     {}
func (m *dummyCollector) SetTreeReused(value bool) {}
func (m *dummyCollector) AddEpisode()              {}
func (m *dummyCollector) AddCollision()            {}
func (m *dummyCollector) AddSolid(ok bool)         {}
func (m *dummyCollector) SetRootVisits(visits int) {}
func (m *dummyCollector) Complete() SearchMetric   { return SearchMetric{} }
