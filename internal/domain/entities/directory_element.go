package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DirectoryElement is one raw record returned by the facility directory service
type DirectoryElement struct {
	Type   string            `json:"type"`
	ID     ElementID         `json:"id"`
	Lat    *float64          `json:"lat,omitempty"`
	Lon    *float64          `json:"lon,omitempty"`
	Center *ElementCenter    `json:"center,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// ElementCenter is the centroid the directory reports for ways and relations
type ElementCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ElementID accepts both numeric and string identifiers
type ElementID string

// UnmarshalJSON implements json.Unmarshaler
func (id *ElementID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ElementID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("element id: %w", err)
	}
	*id = ElementID(n.String())
	return nil
}

