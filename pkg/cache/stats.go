package cache

import (
	"sync/atomic"
	"time"
)

// Statistics counts cache operations. All methods are safe for concurrent use.
type Statistics struct {
	hits, misses, sets, deletes, evictions atomic.Int64

	size, peak atomic.Int64
	started    atomic.Int64 // unix nanos
}

// NewStatistics returns zeroed counters with the uptime clock started.
func NewStatistics() *Statistics {
	s := &Statistics{}
	s.started.Store(time.Now().UnixNano())
	return s
}

func (s *Statistics) Hit()      { s.hits.Add(1) }
func (s *Statistics) Miss()     { s.misses.Add(1) }
func (s *Statistics) Set()      { s.sets.Add(1) }
func (s *Statistics) Delete()   { s.deletes.Add(1) }
func (s *Statistics) Eviction() { s.evictions.Add(1) }

// UpdateSize records the current entry count and raises the peak if needed.
func (s *Statistics) UpdateSize(size int64) {
	s.size.Store(size)
	for {
		peak := s.peak.Load()
		if size <= peak || s.peak.CompareAndSwap(peak, size) {
			return
		}
	}
}

func (s *Statistics) Hits() int64      { return s.hits.Load() }
func (s *Statistics) Misses() int64    { return s.misses.Load() }
func (s *Statistics) Evictions() int64 { return s.evictions.Load() }

// MaxSize is the largest entry count seen since the last Reset.
func (s *Statistics) MaxSize() int64 { return s.peak.Load() }

// HitRatio is hits / (hits + misses), or 0 before any lookup.
func (s *Statistics) HitRatio() float64 {
	hits, misses := s.Hits(), s.Misses()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// Uptime is the time since creation or the last Reset.
func (s *Statistics) Uptime() time.Duration {
	return time.Since(time.Unix(0, s.started.Load()))
}

// Reset zeroes every counter and restarts the uptime clock.
func (s *Statistics) Reset() {
	for _, c := range []*atomic.Int64{&s.hits, &s.misses, &s.sets, &s.deletes, &s.evictions, &s.size, &s.peak} {
		c.Store(0)
	}
	s.started.Store(time.Now().UnixNano())
}

// StatsSummary is a point-in-time copy of Statistics.
type StatsSummary struct {
	Hits        int64         `json:"hits"`
	Misses      int64         `json:"misses"`
	Sets        int64         `json:"sets"`
	Deletes     int64         `json:"deletes"`
	Evictions   int64         `json:"evictions"`
	CurrentSize int64         `json:"current_size"`
	MaxSize     int64         `json:"max_size"`
	HitRatio    float64       `json:"hit_ratio"`
	Uptime      time.Duration `json:"uptime"`
}

// Summary copies the counters. Values are read one at a time, so a summary
// taken under load may mix operations.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Hits:        s.Hits(),
		Misses:      s.Misses(),
		Sets:        s.sets.Load(),
		Deletes:     s.deletes.Load(),
		Evictions:   s.Evictions(),
		CurrentSize: s.size.Load(),
		MaxSize:     s.MaxSize(),
		HitRatio:    s.HitRatio(),
		Uptime:      s.Uptime(),
	}
}
