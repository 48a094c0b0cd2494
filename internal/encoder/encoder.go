// Package encoder turns advisory records into retrievable documents.
package encoder

import (
	"fmt"

	"github.com/raphaelgruber/agriassist/internal/models"
)

// contentTemplate embeds all four source fields in prose so a single
// embedding captures topic, region, question phrasing and answer.
const contentTemplate = "\n        Full Context: This advisory is about %s in %s. The question asked is \"%s\", and the recommended answer is \"%s\".\n"

// Encode converts a record into its document. Identical records always
// produce byte-identical content.
func Encode(r models.AdvisoryRecord) models.EncodedDocument {
	return models.EncodedDocument{
		Content: fmt.Sprintf(contentTemplate, r.Topic, r.Region, r.Question, r.Answer),
		Metadata: models.DocumentMetadata{
			ID:         r.ID,
			Region:     r.Region,
			Topic:      r.Topic,
			SearchText: fmt.Sprintf("%s %s %s %s", r.Question, r.Answer, r.Region, r.Topic),
		},
	}
}

// EncodeAll encodes records in order, one document per record.
func EncodeAll(recs []models.AdvisoryRecord) []models.EncodedDocument {
	docs := make([]models.EncodedDocument, len(recs))
	for i, r := range recs {
		docs[i] = Encode(r)
	}
	return docs
}
