package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// RawJSON is a jsonb column read without interpretation. Scan never fails on
// malformed content; decoding is left to the caller.
type RawJSON []byte

func (r *RawJSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = nil
	case []byte:
		*r = append((*r)[:0], v...)
	case string:
		*r = RawJSON(v)
	default:
		return fmt.Errorf("RawJSON.Scan: unsupported type %T", src)
	}
	return nil
}

func (r RawJSON) Value() (driver.Value, error) {
	if len(r) == 0 {
		return "{}", nil
	}
	return string(r), nil
}

// NewRawJSON marshals v into a RawJSON value.
func NewRawJSON(v any) (RawJSON, error) {
	if v == nil {
		return RawJSON("{}"), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return RawJSON("{}"), nil
	}
	return RawJSON(b), nil
}
