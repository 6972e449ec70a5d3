package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Vector is a dense embedding persisted as a JSON array of float32.
// A nil Vector is stored as SQL NULL.
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal([]float32(v))
	if err != nil {
		return nil, fmt.Errorf("marshal vector failed: %w", err)
	}
	return string(b), nil
}

func (v *Vector) Scan(src any) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*v = nil
		return nil
	case []byte:
		raw = s
	case string:
		raw = []byte(s)
	default:
		return fmt.Errorf("scan vector: unsupported type %T", src)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*v = nil
		return nil
	}
	var out []float32
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("unmarshal vector failed: %w", err)
	}
	*v = out
	return nil
}
