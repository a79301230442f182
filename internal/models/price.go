package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PricePoint is one sample of a historical series. Timestamp is unix millis.
type PricePoint struct {
	Timestamp int64   `json:"t"`
	Value     float64 `json:"p"`
}

// UnmarshalJSON accepts the feed's [timestamp_ms, value] pair encoding as
// well as the {"t", "p"} object this type marshals to.
func (p *PricePoint) UnmarshalJSON(b []byte) error {
	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && trimmed[0] == '{' {
		type plain PricePoint
		return json.Unmarshal(trimmed, (*plain)(p))
	}

	var pair []json.Number
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("price point: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("price point: expected 2 elements, got %d", len(pair))
	}
	ts, err := pair[0].Float64()
	if err != nil {
		return fmt.Errorf("price point timestamp: %w", err)
	}
	v, err := pair[1].Float64()
	if err != nil {
		return fmt.Errorf("price point value: %w", err)
	}
	p.Timestamp = int64(ts)
	p.Value = v
	return nil
}
