package models

import "time"

// SessionMemoryEntry logs one answered question for statistics and export.
type SessionMemoryEntry struct {
	Timestamp   time.Time         `json:"timestamp"`
	Question    string            `json:"question"`
	Answer      string            `json:"answer"`
	Sources     []EncodedDocument `json:"sources"`
	SourceCount int               `json:"source_count"`
}

// AnswerResult is the structured outcome of an ask operation.
// Error is set instead of Answer when the question could not be answered.
type AnswerResult struct {
	Question      string            `json:"question"`
	Answer        string            `json:"answer"`
	Sources       []EncodedDocument `json:"sources"`
	SourceCount   int               `json:"source_count"`
	Timestamp     time.Time         `json:"timestamp"`
	Audio         []byte            `json:"audio,omitempty"`
	Transcription string            `json:"transcription,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// Statistics summarizes a session memory log.
type Statistics struct {
	TotalQuestions        int      `json:"total_questions"`
	AvgSourcesPerQuestion float64  `json:"avg_sources_per_question"`
	CommonTopics          []string `json:"common_topics"`
	CommonRegions         []string `json:"common_regions"`
}
