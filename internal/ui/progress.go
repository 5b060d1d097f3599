package ui

import (
	"sync"
	"time"
)

// speedInterval is the minimum spacing between throughput samples.
const speedInterval = 500 * time.Millisecond

// SpeedStats are documents per second.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats is a snapshot of a ProgressTracker.
type ProgressStats struct {
	Stage      Stage
	Index      string
	Documents  int
	Elapsed    time.Duration
	ErrorCount int
	WarnCount  int
	Speed      SpeedStats
}

// ProgressTracker accumulates progress for display. It is safe for
// concurrent use.
type ProgressTracker struct {
	mu        sync.RWMutex
	now       func() time.Time
	stage     Stage
	index     string
	documents int
	start     time.Time
	errors    int
	warnings  int

	lastDocs   int
	lastSample time.Time
	speed      SpeedStats
	samples    int
	sparkline  *Sparkline
}

// NewProgressTracker creates a tracker starting now.
func NewProgressTracker() *ProgressTracker {
	return newProgressTracker(time.Now)
}

func newProgressTracker(now func() time.Time) *ProgressTracker {
	t := now()
	return &ProgressTracker{
		now:        now,
		stage:      StageChecking,
		start:      t,
		lastSample: t,
		sparkline:  NewSparkline(60),
	}
}

// SetStage moves to stage.
func (p *ProgressTracker) SetStage(stage Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = stage
}

// Update records the running document count for index.
func (p *ProgressTracker) Update(index string, documents int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index != "" {
		p.index = index
	}
	p.documents = documents

	now := p.now()
	elapsed := now.Sub(p.lastSample)
	if elapsed < speedInterval {
		return
	}
	if delta := documents - p.lastDocs; delta > 0 {
		speed := float64(delta) / elapsed.Seconds()
		p.speed.Current = speed
		p.samples++
		if p.samples == 1 {
			p.speed.Avg = speed
		} else {
			p.speed.Avg = 0.2*speed + 0.8*p.speed.Avg
		}
		p.speed.Peak = max(p.speed.Peak, speed)
		p.sparkline.Add(speed)
	}
	p.lastDocs = documents
	p.lastSample = now
}

// AddError counts an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings++
	} else {
		p.errors++
	}
}

// Stats returns a snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProgressStats{
		Stage:      p.stage,
		Index:      p.index,
		Documents:  p.documents,
		Elapsed:    p.now().Sub(p.start),
		ErrorCount: p.errors,
		WarnCount:  p.warnings,
		Speed:      p.speed,
	}
}

// RenderSparkline draws recent throughput in width cells.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sparkline.Render(width)
}
