package event

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Object is the storage notification payload delivered when an object is
// finalized in a bucket. Only Bucket and Name are required; the other fields
// are informational and never fail decoding on their own.
type Object struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        Size   `json:"size,omitempty"`
	// TimeCreated is kept exactly as delivered.
	TimeCreated string `json:"timeCreated,omitempty"`
}

// EventTime is the opaque time component optionally mixed into the event key.
func (o Object) EventTime() string {
	return o.TimeCreated
}

// Size is an object size sent either as a JSON string (Cloud Storage) or as a
// JSON number.
type Size string

func (s *Size) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*s = ""
	case b[0] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Size(str)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("object size: %w", err)
		}
		*s = Size(n.String())
	}
	return nil
}
