package merkle

import (
	"fmt"

	"github.com/canopy-network/merklevault/lib"
)

func ErrInvalidIndex(index uint64, size int) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidIndex, lib.MerkleModule, fmt.Sprintf("leaf index %d is out of range for a tree of %d leaves", index, size))
}

func ErrProofFormat(length int) lib.ErrorI {
	return lib.NewError(lib.CodeProofFormat, lib.MerkleModule, fmt.Sprintf("proof size is not a multiple of %d: %d", DigestSize, length))
}

func ErrInvalidDigestLength(length int) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidDigestLength, lib.MerkleModule, fmt.Sprintf("digest must be %d bytes, got %d", DigestSize, length))
}

func ErrInvalidDigestHex(err error) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidDigestHex, lib.MerkleModule, fmt.Sprintf("hex.Decode() failed with err: %s", err.Error()))
}

// RootMismatchError is the outcome of a failed integrity check
// It carries both roots so the caller can report the expected and the actually derived value
type RootMismatchError struct {
	Expected Digest `json:"expected"`
	Computed Digest `json:"computed"`
}

var _ lib.ErrorI = &RootMismatchError{}

func ErrRootMismatch(expected, computed Digest) *RootMismatchError {
	return &RootMismatchError{Expected: expected, Computed: computed}
}

// Code() returns the associated error code
func (e *RootMismatchError) Code() lib.ErrorCode { return lib.CodeRootMismatch }

// Module() returns module field
func (e *RootMismatchError) Module() lib.ErrorModule { return lib.MerkleModule }

// Error() formats the error the same way as every other lib.Error
func (e *RootMismatchError) Error() string {
	return lib.NewError(e.Code(), e.Module(), fmt.Sprintf("calculated merkle root %s != expected merkle root %s", e.Computed, e.Expected)).Error()
}
