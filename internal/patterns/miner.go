// Package patterns clusters incoming log messages into templates and
// reports the most frequent ones, as a thin wrapper around go-drain3's
// online template mining.
package patterns

import (
	"sort"
	"strings"
	"sync"

	drain3 "github.com/jaeyo/go-drain3/pkg/drain3"
)

// PatternStat is one mined template and its observed frequency.
type PatternStat struct {
	Template   string
	Count      int
	Percentage float64
}

// Miner incrementally clusters messages into templates. Safe for
// concurrent use.
type Miner struct {
	mu        sync.Mutex
	tm        *drain3.TemplateMiner
	counts    map[int]int
	templates map[int]string
	total     int
}

// New creates an empty Miner.
func New() *Miner {
	return &Miner{
		tm:        drain3.NewTemplateMiner(drain3.DefaultConfig()),
		counts:    make(map[int]int),
		templates: make(map[int]string),
	}
}

// AddLogMessage feeds one message into the miner. Empty or
// whitespace-only messages are skipped.
func (m *Miner) AddLogMessage(message string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	result := m.tm.AddLogMessage(message)
	if result == nil {
		return
	}
	m.counts[result.ClusterID]++
	m.templates[result.ClusterID] = result.Template
	m.total++
}

// GetTopPatterns returns up to limit patterns, sorted by descending
// frequency (ties broken by template text for determinism). A limit of
// 0 or less returns every pattern.
func (m *Miner) GetTopPatterns(limit int) []PatternStat {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.total == 0 {
		return nil
	}

	stats := make([]PatternStat, 0, len(m.counts))
	for id, count := range m.counts {
		stats = append(stats, PatternStat{
			Template:   m.templates[id],
			Count:      count,
			Percentage: float64(count) / float64(m.total) * 100,
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Template < stats[j].Template
	})

	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}

// GetStats returns the number of distinct clusters and the total number
// of messages fed into the miner.
func (m *Miner) GetStats() (clusters, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counts), m.total
}

// Reset discards all mined state, starting a fresh model.
func (m *Miner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tm = drain3.NewTemplateMiner(drain3.DefaultConfig())
	m.counts = make(map[int]int)
	m.templates = make(map[int]string)
	m.total = 0
}
