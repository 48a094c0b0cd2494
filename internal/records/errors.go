package records

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRecord indicates a source record that cannot be ingested.
// Use errors.Is() to check for it; errors.As() with *MalformedRecordError gives details.
var ErrMalformedRecord = errors.New("malformed record")

// MalformedRecordError describes why a record was rejected.
type MalformedRecordError struct {
	Index   int      // position in the source file, zero-based
	ID      string   // record id when known
	Missing []string // required fields that are absent or blank
	Reason  string   // set for problems other than missing fields
}

func (e *MalformedRecordError) Error() string {
	where := fmt.Sprintf("record %d", e.Index)
	if e.ID != "" {
		where = fmt.Sprintf("record %d (id %q)", e.Index, e.ID)
	}
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: %s: missing %s", ErrMalformedRecord, where, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: %s: %s", ErrMalformedRecord, where, e.Reason)
}

// Is reports whether target is ErrMalformedRecord.
func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}
