// Package models defines data structures for the agricultural advisory assistant.
package models

import "strings"

// AdvisoryRecord is one curated question/answer pair from the source data file.
type AdvisoryRecord struct {
	ID       string `json:"id" yaml:"id"`
	Topic    string `json:"topic" yaml:"topic"`
	Region   string `json:"region" yaml:"region"`
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// RequiredFields lists the record fields that must be present and non-blank.
var RequiredFields = []string{"id", "region", "topic", "question", "answer"}

// MissingFields returns the names of required fields that are blank.
func (r AdvisoryRecord) MissingFields() []string {
	values := map[string]string{
		"id":       r.ID,
		"region":   r.Region,
		"topic":    r.Topic,
		"question": r.Question,
		"answer":   r.Answer,
	}

	var missing []string
	for _, field := range RequiredFields {
		if strings.TrimSpace(values[field]) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// DocumentMetadata is the fixed-shape metadata attached to an encoded document.
type DocumentMetadata struct {
	ID         string `json:"id"`
	Region     string `json:"region"`
	Topic      string `json:"topic"`
	SearchText string `json:"search_text"`
}

// EncodedDocument is the retrievable unit derived from one AdvisoryRecord.
type EncodedDocument struct {
	Content  string           `json:"content"`
	Metadata DocumentMetadata `json:"metadata"`
}

// DocumentIDs returns the record ids of the given documents, in order.
func DocumentIDs(docs []EncodedDocument) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.Metadata.ID
	}
	return ids
}
