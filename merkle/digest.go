package merkle

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/canopy-network/merklevault/lib"
	"github.com/canopy-network/merklevault/lib/crypto"
)

// DigestSize is the length in bytes of every leaf, node and root
const DigestSize = crypto.HashSize

// Digest is the fixed size output of the global hash function
// It is kept as an array so digests are compared with == and copied by value without allocation
type Digest [DigestSize]byte

// ZeroDigest is the root of a tree built from zero leaves
var ZeroDigest = Digest{}

// NewDigest() converts exactly DigestSize raw bytes into a Digest
func NewDigest(bz []byte) (d Digest, err lib.ErrorI) {
	if len(bz) != DigestSize {
		return d, ErrInvalidDigestLength(len(bz))
	}
	copy(d[:], bz)
	return
}

// DigestFromHex() parses a hex encoded digest, surrounding whitespace is ignored
func DigestFromHex(s string) (d Digest, err lib.ErrorI) {
	s = strings.TrimSpace(s)
	if len(s) != 2*DigestSize {
		return d, ErrInvalidDigestLength(len(s) / 2)
	}
	if _, e := hex.Decode(d[:], []byte(s)); e != nil {
		return d, ErrInvalidDigestHex(e)
	}
	return
}

// Combine() computes the parent of two sibling nodes as Hash(left || right)
// The order matters: Combine(a, b) != Combine(b, a) unless a == b
func Combine(left, right Digest) Digest {
	var buf [2 * DigestSize]byte
	copy(buf[:DigestSize], left[:])
	copy(buf[DigestSize:], right[:])
	return crypto.Sum(buf[:])
}

// Bytes() returns a copy of the raw digest bytes
func (d Digest) Bytes() []byte {
	bz := make([]byte, DigestSize)
	copy(bz, d[:])
	return bz
}

// IsZero() returns true if the digest is all zero bytes
func (d Digest) IsZero() bool { return d == ZeroDigest }

// String() returns the lowercase hex representation of the digest
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// MarshalJSON() encodes the digest as a hex string
func (d Digest) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// UnmarshalJSON() decodes a hex string into the digest
func (d *Digest) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := DigestFromHex(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
