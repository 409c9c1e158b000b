package compiler

import (
	"crypto/md5"
	"encoding/binary"

	"github.com/roach88/cdrgen/internal/idl"
)

// maxMemberID is the largest id an EMHEADER can carry.
const maxMemberID = 0x0FFFFFFF

// assignMemberIDs sets the effective id of every member. Members without
// @id follow the previous member (sequential) or hash their name.
func assignMemberIDs(n *idl.TypeNode) {
	var next uint32
	for _, m := range n.Members {
		switch {
		case m.Annotations.ID != nil:
			m.ID = *m.Annotations.ID
		case n.Annotations.AutoID == idl.AutoHash:
			m.ID = HashMemberID(m.Name)
		default:
			m.ID = next
		}
		next = m.ID + 1
	}
}

// HashMemberID is the @autoid(HASH) member id: the first four bytes of
// MD5(name), little endian, masked to 28 bits.
func HashMemberID(name string) uint32 {
	sum := md5.Sum([]byte(name))
	return binary.LittleEndian.Uint32(sum[:4]) & maxMemberID
}
