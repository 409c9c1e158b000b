package descriptor

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainDescriptor = "cdrgen/descriptor/v1"
	DomainName       = "cdrgen/name/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NameHash returns the domain-separated hash of a fully-qualified IDL path.
// The naming resolver derives collision suffixes from it.
func NameHash(path string) string {
	return hashWithDomain(DomainName, []byte(path))
}
