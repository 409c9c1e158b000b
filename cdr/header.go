package cdr

import (
	"encoding/binary"
	"fmt"

	"github.com/roach88/cdrgen/descriptor"
)

// Representation is the encapsulation identifier in the first two bytes of
// every serialized sample. The low bit selects little endian.
type Representation uint16

const (
	CDRBE    Representation = 0x0000
	CDRLE    Representation = 0x0001
	PLCDRBE  Representation = 0x0002
	PLCDRLE  Representation = 0x0003
	CDR2BE   Representation = 0x0006
	CDR2LE   Representation = 0x0007
	DCDR2BE  Representation = 0x0008
	DCDR2LE  Representation = 0x0009
	PLCDR2BE Representation = 0x000a
	PLCDR2LE Representation = 0x000b
)

// HeaderSize is the length of the encapsulation header.
const HeaderSize = 4

func (r Representation) String() string {
	switch r {
	case CDRBE:
		return "CDR_BE"
	case CDRLE:
		return "CDR_LE"
	case PLCDRBE:
		return "PL_CDR_BE"
	case PLCDRLE:
		return "PL_CDR_LE"
	case CDR2BE:
		return "CDR2_BE"
	case CDR2LE:
		return "CDR2_LE"
	case DCDR2BE:
		return "D_CDR2_BE"
	case DCDR2LE:
		return "D_CDR2_LE"
	case PLCDR2BE:
		return "PL_CDR2_BE"
	case PLCDR2LE:
		return "PL_CDR2_LE"
	}
	return fmt.Sprintf("0x%04x", uint16(r))
}

// LittleEndian reports whether the representation is little endian.
func (r Representation) LittleEndian() bool { return r&1 == 1 }

// Version is the Extended CDR encoding version.
type Version uint8

const (
	// VersionAuto picks XCDR1 for plain types (all FINAL, no optional
	// members) and XCDR2 otherwise.
	VersionAuto Version = iota
	XCDR1
	XCDR2
)

func (v Version) String() string {
	switch v {
	case XCDR1:
		return "xcdr1"
	case XCDR2:
		return "xcdr2"
	}
	return "auto"
}

// representation returns the header id for the root type's extensibility.
func representation(v Version, ext descriptor.Extensibility, bigEndian bool) Representation {
	var r Representation
	switch {
	case v == XCDR1:
		r = CDRBE
	case ext == descriptor.Mutable:
		r = PLCDR2BE
	case ext == descriptor.Appendable:
		r = DCDR2BE
	default:
		r = CDR2BE
	}
	if !bigEndian {
		r |= 1
	}
	return r
}

// Header is a parsed encapsulation header.
type Header struct {
	Representation Representation
	Options        uint16
}

// Padding returns the trailing padding byte count carried in the options.
func (h Header) Padding() int { return int(h.Options & 0x3) }

// ByteOrder returns the byte order of the payload.
func (h Header) ByteOrder() binary.ByteOrder {
	if h.Representation.LittleEndian() {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Version returns the encoding version the representation belongs to.
func (h Header) Version() (Version, error) {
	switch h.Representation {
	case CDRBE, CDRLE:
		return XCDR1, nil
	case CDR2BE, CDR2LE, DCDR2BE, DCDR2LE, PLCDR2BE, PLCDR2LE:
		return XCDR2, nil
	case PLCDRBE, PLCDRLE:
		return 0, fmt.Errorf("parameter-list CDR (XCDR1 mutable) is not supported")
	}
	return 0, fmt.Errorf("unknown representation %s", h.Representation)
}

// ParseHeader reads the encapsulation header of a serialized sample.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, &DecodeError{
			Code:    ErrCodeTruncated,
			Message: fmt.Sprintf("buffer of %d bytes has no encapsulation header", len(data)),
		}
	}
	return Header{
		Representation: Representation(binary.BigEndian.Uint16(data[0:2])),
		Options:        binary.BigEndian.Uint16(data[2:4]),
	}, nil
}

// Option configures Encode.
type Option func(*options)

type options struct {
	bigEndian bool
	version   Version
}

// WithBigEndian encodes in big-endian byte order. The default is little
// endian.
func WithBigEndian() Option {
	return func(o *options) { o.bigEndian = true }
}

// WithVersion forces an encoding version instead of VersionAuto.
func WithVersion(v Version) Option {
	return func(o *options) { o.version = v }
}
