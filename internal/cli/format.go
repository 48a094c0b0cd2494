package cli

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/agriassist/internal/metrics"
	"github.com/raphaelgruber/agriassist/internal/models"
)

// formatAnswer renders an answer with its numbered sources.
func formatAnswer(theme Theme, r models.AnswerResult) string {
	var b strings.Builder
	if r.Transcription != "" {
		b.WriteString(theme.hintStyle().Render(fmt.Sprintf("Heard: %q", r.Transcription)) + "\n\n")
	}
	if r.Error != "" {
		b.WriteString(theme.errorStyle().Render(r.Error) + "\n")
		return b.String()
	}

	b.WriteString(strings.TrimSpace(r.Answer) + "\n")
	if len(r.Sources) > 0 {
		b.WriteString("\n" + theme.statusStyle().Render(fmt.Sprintf("Sources (%d):", r.SourceCount)) + "\n")
		for i, d := range r.Sources {
			b.WriteString(fmt.Sprintf("  [%d] %s · %s", i+1, d.Metadata.Topic, d.Metadata.Region))
			if d.Metadata.ID != "" {
				b.WriteString(theme.hintStyle().Render(fmt.Sprintf(" (id %s)", d.Metadata.ID)))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// formatStats renders session statistics.
func formatStats(theme Theme, s models.Statistics) string {
	if s.TotalQuestions == 0 {
		return theme.hintStyle().Render("No questions answered in this session yet.") + "\n"
	}
	var b strings.Builder
	b.WriteString(theme.statusStyle().Render("Session statistics") + "\n")
	fmt.Fprintf(&b, "  Questions answered:  %d\n", s.TotalQuestions)
	fmt.Fprintf(&b, "  Sources per answer:  %.1f\n", s.AvgSourcesPerQuestion)
	if len(s.CommonTopics) > 0 {
		fmt.Fprintf(&b, "  Common topics:       %s\n", strings.Join(s.CommonTopics, ", "))
	}
	if len(s.CommonRegions) > 0 {
		fmt.Fprintf(&b, "  Common regions:      %s\n", strings.Join(s.CommonRegions, ", "))
	}
	return b.String()
}

// formatMetrics renders server metrics.
func formatMetrics(s metrics.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Uptime:     %.0fs\n", s.UptimeSeconds)
	fmt.Fprintf(&b, "Questions:  %d (no context: %d)\n", s.Questions, s.NoContext)

	ops := []struct {
		name string
		op   *metrics.OperationSnapshot
	}{
		{"embedding", s.Embedding},
		{"retrieval", s.Retrieval},
		{"generation", s.Generation},
		{"transcription", s.Transcription},
		{"synthesis", s.Synthesis},
		{"db search", s.DBSearch},
		{"db upsert", s.DBUpsert},
	}
	for _, o := range ops {
		if o.op == nil {
			continue
		}
		fmt.Fprintf(&b, "  %-14s n=%-5d avg=%.1fms p95=%dms max=%dms", o.name, o.op.Count, o.op.AvgTimeMs, o.op.P95TimeMs, o.op.MaxTimeMs)
		if o.op.Failures > 0 {
			fmt.Fprintf(&b, " failed=%d", o.op.Failures)
		}
		if o.op.TotalInputTokens != nil && o.op.TotalOutputTokens != nil {
			fmt.Fprintf(&b, " tokens=%d/%d", *o.op.TotalInputTokens, *o.op.TotalOutputTokens)
		}
		b.WriteString("\n")
	}
	return b.String()
}
