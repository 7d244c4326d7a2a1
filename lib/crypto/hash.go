package crypto

import (
	"crypto/sha256"
	"hash"
)

const (
	HashSize = sha256.Size
)

/*
	Hash is a function that takes an input message and returns a fixed-size string of bytes that is unique to the input
    to produce a short, fixed-length representation of the data, which can be used for various applications like data
    integrity checks
*/

// Hasher() returns the global hashing algorithm used
func Hasher() hash.Hash { return sha256.New() }

// Hash() executes the global hashing algorithm on input bytes
func Hash(msg []byte) []byte {
	h := sha256.Sum256(msg)
	return h[:]
}

// Sum() executes the global hashing algorithm on input bytes and returns the fixed size array
// which avoids a heap allocation for callers that keep digests by value
func Sum(msg []byte) [HashSize]byte { return sha256.Sum256(msg) }
