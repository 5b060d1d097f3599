package ui

import "strings"

// SparklineChars are the eight bar heights, lowest first.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline keeps the last N samples and draws them as block characters,
// scaled to the largest sample held.
type Sparkline struct {
	samples []float64
	head    int
	count   int
}

// NewSparkline holds up to size samples.
func NewSparkline(size int) *Sparkline {
	if size <= 0 {
		size = 60
	}
	return &Sparkline{samples: make([]float64, size)}
}

// Add appends a sample, dropping the oldest when full.
func (s *Sparkline) Add(v float64) {
	s.samples[s.head] = v
	s.head = (s.head + 1) % len(s.samples)
	s.count++
}

// Count returns how many samples were ever added.
func (s *Sparkline) Count() int {
	return s.count
}

// recent returns the held samples, oldest first.
func (s *Sparkline) recent() []float64 {
	n := min(s.count, len(s.samples))
	out := make([]float64, 0, n)
	start := (s.head - n + len(s.samples)) % len(s.samples)
	for i := range n {
		out = append(out, s.samples[(start+i)%len(s.samples)])
	}
	return out
}

// Render draws the newest samples right-aligned in width cells. width <= 0
// uses the sample capacity.
func (s *Sparkline) Render(width int) string {
	if width <= 0 {
		width = len(s.samples)
	}
	vals := s.recent()
	if len(vals) > width {
		vals = vals[len(vals)-width:]
	}

	peak := 0.0
	for _, v := range vals {
		peak = max(peak, v)
	}

	var sb strings.Builder
	sb.Grow(width * 3)
	sb.WriteString(strings.Repeat(" ", width-len(vals)))
	top := len(SparklineChars) - 1
	for _, v := range vals {
		i := 0
		if peak > 0 {
			i = min(max(int(v/peak*float64(top)), 0), top)
		}
		sb.WriteRune(SparklineChars[i])
	}
	return sb.String()
}

// Clear drops every sample.
func (s *Sparkline) Clear() {
	clear(s.samples)
	s.head = 0
	s.count = 0
}
