package cdr

import (
	"crypto/md5"

	"github.com/roach88/cdrgen/descriptor"
	"github.com/roach88/cdrgen/value"
)

// KeyHashSize is the length of a key hash.
const KeyHashSize = 16

// KeyOf projects v onto its key members and serializes them as big-endian
// XCDR2 without encapsulation header or DHEADERs. The result depends only on
// key member values. Types without key members yield an empty slice.
func KeyOf(d *descriptor.Descriptor, v value.Value) ([]byte, error) {
	if !d.Keyed() {
		return []byte{}, nil
	}
	e := newEncoder(d, true, true, 0)
	e.keyMode = true
	e.push(d.Name())
	if err := e.node(0, v); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// KeyHash returns the 16-byte instance key hash: the serialized key padded
// with zeros when every possible key fits in 16 bytes, otherwise the MD5
// digest of the serialized key. Keyless types hash to all zeros.
func KeyHash(d *descriptor.Descriptor, v value.Value) ([KeyHashSize]byte, error) {
	var h [KeyHashSize]byte
	key, err := KeyOf(d, v)
	if err != nil {
		return h, err
	}
	if !d.Keyed() {
		return h, nil
	}
	if d.KeyFitsHash() {
		copy(h[:], key)
		return h, nil
	}
	return md5.Sum(key), nil
}
