// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"slices"
	"sync"
	"time"
)

// recentWindow is how many recent durations feed the p95 estimate.
const recentWindow = 256

// span tracks count, sum and extremes of a series of values.
type span struct {
	total    int64
	min, max int64
	seen     bool
}

func (s *span) add(v int64) {
	s.total += v
	if !s.seen || v < s.min {
		s.min = v
	}
	if !s.seen || v > s.max {
		s.max = v
	}
	s.seen = true
}

// operation holds aggregated metrics for a single operation type.
type operation struct {
	count    int64
	failures int64
	timeNs   span
	inTok    span
	outTok   span

	// recent is a ring buffer of the last recentWindow durations.
	recent []time.Duration
	next   int
}

func (o *operation) observe(d time.Duration) {
	o.count++
	o.timeNs.add(int64(d))
	if len(o.recent) < recentWindow {
		o.recent = append(o.recent, d)
		return
	}
	o.recent[o.next] = d
	o.next = (o.next + 1) % recentWindow
}

func (o *operation) p95() time.Duration {
	if len(o.recent) == 0 {
		return 0
	}
	sorted := slices.Clone(o.recent)
	slices.Sort(sorted)
	return sorted[(len(sorted)*95+99)/100-1]
}

// OperationSnapshot provides computed stats for one operation.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Failures    int64   `json:"failures,omitempty"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
	P95TimeMs   int64   `json:"p95_time_ms"`

	// Token stats, set only for generation.
	TotalInputTokens  *int64   `json:"total_input_tokens,omitempty"`
	TotalOutputTokens *int64   `json:"total_output_tokens,omitempty"`
	AvgInputTokens    *float64 `json:"avg_input_tokens,omitempty"`
	AvgOutputTokens   *float64 `json:"avg_output_tokens,omitempty"`
	MinInputTokens    *int64   `json:"min_input_tokens,omitempty"`
	MaxInputTokens    *int64   `json:"max_input_tokens,omitempty"`
	MinOutputTokens   *int64   `json:"min_output_tokens,omitempty"`
	MaxOutputTokens   *int64   `json:"max_output_tokens,omitempty"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64            `json:"uptime_seconds"`
	Questions     int64              `json:"questions"`
	NoContext     int64              `json:"no_context"`
	Embedding     *OperationSnapshot `json:"embedding,omitempty"`
	Retrieval     *OperationSnapshot `json:"retrieval,omitempty"`
	Generation    *OperationSnapshot `json:"generation,omitempty"`
	Transcription *OperationSnapshot `json:"transcription,omitempty"`
	Synthesis     *OperationSnapshot `json:"synthesis,omitempty"`
	DBSearch      *OperationSnapshot `json:"db_search,omitempty"`
	DBUpsert      *OperationSnapshot `json:"db_upsert,omitempty"`
}

// Operation names for the collector.
const (
	OpEmbedding     = "embedding"
	OpRetrieval     = "retrieval"
	OpGeneration    = "generation"
	OpTranscription = "transcription"
	OpSynthesis     = "synthesis"
	OpDBSearch      = "db_search"
	OpDBUpsert      = "db_upsert"
)

// Counter names for the collector.
const (
	CountQuestions = "questions"
	CountNoContext = "no_context"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*operation
	counters  map[string]int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*operation),
		counters:  make(map[string]int64),
	}
}

// Inc increments a named counter.
func (c *Collector) Inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name]++
}

// op returns the metrics for name, creating them. Caller must hold the write lock.
func (c *Collector) op(name string) *operation {
	o, ok := c.ops[name]
	if !ok {
		o = &operation{}
		c.ops[name] = o
	}
	return o
}

// RecordTiming records a successful operation.
func (c *Collector) RecordTiming(op string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.op(op).observe(d)
}

// RecordFailure counts a failed operation. Failures do not affect timings.
func (c *Collector) RecordFailure(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.op(op).failures++
}

// RecordLLMUsage records timing and token usage for a generation call.
func (c *Collector) RecordLLMUsage(op string, d time.Duration, inputTokens, outputTokens int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	o := c.op(op)
	o.observe(d)
	o.inTok.add(inputTokens)
	o.outTok.add(outputTokens)
}

// snapshot computes stats for o, returning nil if nothing was recorded.
func (o *operation) snapshot(includeTokens bool) *OperationSnapshot {
	if o == nil || (o.count == 0 && o.failures == 0) {
		return nil
	}

	snap := &OperationSnapshot{
		Count:    o.count,
		Failures: o.failures,
	}
	if o.count == 0 {
		return snap
	}

	snap.TotalTimeMs = time.Duration(o.timeNs.total).Milliseconds()
	snap.AvgTimeMs = float64(snap.TotalTimeMs) / float64(o.count)
	snap.MinTimeMs = time.Duration(o.timeNs.min).Milliseconds()
	snap.MaxTimeMs = time.Duration(o.timeNs.max).Milliseconds()
	snap.P95TimeMs = o.p95().Milliseconds()

	if includeTokens && (o.inTok.total > 0 || o.outTok.total > 0) {
		avgIn := float64(o.inTok.total) / float64(o.count)
		avgOut := float64(o.outTok.total) / float64(o.count)
		snap.TotalInputTokens = ptr(o.inTok.total)
		snap.TotalOutputTokens = ptr(o.outTok.total)
		snap.AvgInputTokens = &avgIn
		snap.AvgOutputTokens = &avgOut
		snap.MinInputTokens = ptr(o.inTok.min)
		snap.MaxInputTokens = ptr(o.inTok.max)
		snap.MinOutputTokens = ptr(o.outTok.min)
		snap.MaxOutputTokens = ptr(o.outTok.max)
	}
	return snap
}

func ptr(v int64) *int64 { return &v }

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Questions:     c.counters[CountQuestions],
		NoContext:     c.counters[CountNoContext],
		Embedding:     c.ops[OpEmbedding].snapshot(false),
		Retrieval:     c.ops[OpRetrieval].snapshot(false),
		Generation:    c.ops[OpGeneration].snapshot(true),
		Transcription: c.ops[OpTranscription].snapshot(false),
		Synthesis:     c.ops[OpSynthesis].snapshot(false),
		DBSearch:      c.ops[OpDBSearch].snapshot(false),
		DBUpsert:      c.ops[OpDBUpsert].snapshot(false),
	}
}
