package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type document struct {
	Nodes []Node `json:"nodes"`
}

// MarshalJSON returns the canonical form.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	return d.MarshalCanonical()
}

// Unmarshal parses and validates a descriptor produced by MarshalCanonical.
// Unknown fields are rejected.
func Unmarshal(data []byte) (*Descriptor, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	return New(doc.Nodes)
}

// MustUnmarshal is Unmarshal for descriptors embedded in generated code.
// It panics on error.
func MustUnmarshal(data []byte) *Descriptor {
	d, err := Unmarshal(data)
	if err != nil {
		panic(fmt.Sprintf("descriptor: %v", err))
	}
	return d
}
