package conversation

import (
	"cmp"
	"math"
	"slices"

	"github.com/raphaelgruber/agriassist/internal/models"
)

const (
	// MaxLogEntries caps the session memory log.
	MaxLogEntries = 20

	// TopCategories is how many topics and regions statistics report.
	TopCategories = 5
)

// Log is a FIFO of answered questions with their sources.
// It is not safe for concurrent use.
type Log struct {
	entries []models.SessionMemoryEntry
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{entries: make([]models.SessionMemoryEntry, 0, MaxLogEntries+1)}
}

// Add appends an entry, evicting the oldest once MaxLogEntries is exceeded.
func (l *Log) Add(e models.SessionMemoryEntry) {
	l.entries = append(l.entries, e)
	if over := len(l.entries) - MaxLogEntries; over > 0 {
		l.entries = append(l.entries[:0], l.entries[over:]...)
	}
}

// Entries returns a copy of the log, oldest first.
func (l *Log) Entries() []models.SessionMemoryEntry {
	out := make([]models.SessionMemoryEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries held.
func (l *Log) Len() int {
	return len(l.entries)
}

// Clear empties the log.
func (l *Log) Clear() {
	l.entries = l.entries[:0]
}

// Statistics summarizes the log. Averages are rounded to one decimal;
// topics and regions are ranked by frequency, ties in first-seen order.
func (l *Log) Statistics() models.Statistics {
	stats := models.Statistics{
		CommonTopics:  []string{},
		CommonRegions: []string{},
	}
	if len(l.entries) == 0 {
		return stats
	}

	var sources int
	topics := newTally()
	regions := newTally()
	for _, e := range l.entries {
		sources += e.SourceCount
		for _, doc := range e.Sources {
			topics.add(doc.Metadata.Topic)
			regions.add(doc.Metadata.Region)
		}
	}

	stats.TotalQuestions = len(l.entries)
	avg := float64(sources) / float64(len(l.entries))
	stats.AvgSourcesPerQuestion = math.Round(avg*10) / 10
	stats.CommonTopics = topics.top(TopCategories)
	stats.CommonRegions = regions.top(TopCategories)
	return stats
}

// tally counts values while remembering first-seen order.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(v string) {
	if v == "" {
		return
	}
	if _, ok := t.counts[v]; !ok {
		t.order = append(t.order, v)
	}
	t.counts[v]++
}

func (t *tally) top(n int) []string {
	ranked := slices.Clone(t.order)
	slices.SortStableFunc(ranked, func(a, b string) int {
		return cmp.Compare(t.counts[b], t.counts[a])
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	if ranked == nil {
		return []string{}
	}
	return ranked
}
