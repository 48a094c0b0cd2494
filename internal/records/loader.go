// Package records loads advisory records from JSON or YAML source files.
package records

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/raphaelgruber/agriassist/internal/models"
	"gopkg.in/yaml.v3"
)

// Format identifies the encoding of a record file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the record format from a file extension.
// Unknown extensions default to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads and validates all records in the file at path.
// Any malformed record fails the whole load.
func Load(path string) ([]models.AdvisoryRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records: %w", err)
	}
	defer f.Close()

	recs, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return recs, nil
}

// Decode parses a sequence of records and validates them.
func Decode(r io.Reader, format Format) ([]models.AdvisoryRecord, error) {
	var raw []map[string]any

	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil && err != io.EOF {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported record format: %s", format)
	}

	recs := make([]models.AdvisoryRecord, 0, len(raw))
	for i, item := range raw {
		rec, err := fromRaw(i, item)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	if err := Validate(recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Validate checks required fields and id uniqueness.
func Validate(recs []models.AdvisoryRecord) error {
	seen := make(map[string]int, len(recs))
	for i, rec := range recs {
		if missing := rec.MissingFields(); len(missing) > 0 {
			return &MalformedRecordError{Index: i, ID: rec.ID, Missing: missing}
		}
		if first, dup := seen[rec.ID]; dup {
			return &MalformedRecordError{
				Index:  i,
				ID:     rec.ID,
				Reason: fmt.Sprintf("duplicate id, first seen at record %d", first),
			}
		}
		seen[rec.ID] = i
	}
	return nil
}

func fromRaw(index int, item map[string]any) (models.AdvisoryRecord, error) {
	fields := make(map[string]string, len(models.RequiredFields))
	for _, name := range models.RequiredFields {
		v, ok := item[name]
		if !ok || v == nil {
			continue
		}
		s, err := scalarString(v)
		if err != nil {
			id, _ := scalarString(item["id"])
			return models.AdvisoryRecord{}, &MalformedRecordError{
				Index:  index,
				ID:     id,
				Reason: fmt.Sprintf("field %q: %v", name, err),
			}
		}
		fields[name] = s
	}

	return models.AdvisoryRecord{
		ID:       fields["id"],
		Topic:    fields["topic"],
		Region:   fields["region"],
		Question: fields["question"],
		Answer:   fields["answer"],
	}, nil
}

// scalarString renders a decoded scalar as a string. Numeric ids are common
// in exported datasets, so numbers are accepted and printed in decimal form.
func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported type %T", v)
	}
}
