package merkle

import (
	"encoding/json"

	"github.com/canopy-network/merklevault/lib"
)

// Proof is the ordered list of sibling digests from a leaf's level up to, but excluding, the root level
type Proof []Digest

// Bytes() serializes the proof as the concatenation of its digests, DigestSize * len(proof) bytes
func (p Proof) Bytes() []byte {
	bz := make([]byte, 0, len(p)*DigestSize)
	for _, d := range p {
		bz = append(bz, d[:]...)
	}
	return bz
}

// ProofFromBytes() deserializes a proof; the buffer length must be a multiple of DigestSize
func ProofFromBytes(bz []byte) (Proof, lib.ErrorI) {
	if len(bz)%DigestSize != 0 {
		return nil, ErrProofFormat(len(bz))
	}
	proof := make(Proof, len(bz)/DigestSize)
	for i := range proof {
		copy(proof[i][:], bz[i*DigestSize:(i+1)*DigestSize])
	}
	return proof, nil
}

// Strings() returns the hex encoding of every digest in order
func (p Proof) Strings() []string {
	s := make([]string, len(p))
	for i, d := range p {
		s[i] = d.String()
	}
	return s
}

// MarshalJSON() encodes the proof as a list of hex digests
func (p Proof) MarshalJSON() ([]byte, error) { return json.Marshal(p.Strings()) }

// RootFromProof() recomputes the root from a leaf digest, its index and its proof
// It reads nothing but its arguments, so a peer holding only the leaf content and a
// previously published root can use it
func RootFromProof(index uint64, leaf Digest, proof Proof) Digest {
	running := leaf
	for _, sibling := range proof {
		if index%2 == 0 {
			running = Combine(running, sibling)
		} else {
			running = Combine(sibling, running)
		}
		index >>= 1
	}
	return running
}

// VerifyLeaf() checks a leaf against a trusted root
// On failure the returned *RootMismatchError carries the computed root
func VerifyLeaf(root Digest, index uint64, leaf Digest, proof Proof) lib.ErrorI {
	if computed := RootFromProof(index, leaf, proof); computed != root {
		return ErrRootMismatch(root, computed)
	}
	return nil
}
