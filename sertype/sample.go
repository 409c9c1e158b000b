package sertype

import (
	"fmt"

	"github.com/roach88/cdrgen/cdr"
	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/value"
)

// Sample is implemented by generated types.
type Sample interface {
	Descriptor() *descriptor.Descriptor
	ToValue() value.Value
	FromValue(value.Value) error
}

// SerializeSample encodes s using its own descriptor.
func SerializeSample(s Sample, opts ...cdr.Option) (*Buffer, error) {
	data, err := cdr.Encode(s.Descriptor(), s.ToValue(), opts...)
	if err != nil {
		return nil, err
	}
	return &Buffer{data: data, length: len(data)}, nil
}

// DeserializeInto decodes data into s.
func DeserializeInto(s Sample, data []byte) error {
	v, err := cdr.Decode(s.Descriptor(), data)
	if err != nil {
		return err
	}
	if err := s.FromValue(v); err != nil {
		return fmt.Errorf("%s: %w", s.Descriptor().Name(), err)
	}
	return nil
}

// SampleKey returns the serialized key of s.
func SampleKey(s Sample) (*Buffer, error) {
	key, err := cdr.KeyOf(s.Descriptor(), s.ToValue())
	if err != nil {
		return nil, err
	}
	return &Buffer{data: key, length: len(key)}, nil
}
