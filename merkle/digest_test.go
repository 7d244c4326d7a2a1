package merkle

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/canopy-network/merklevault/lib"
	"github.com/canopy-network/merklevault/lib/crypto"
	"github.com/stretchr/testify/require"
)

func TestDigestFromHex(t *testing.T) {
	valid := strings.Repeat("ab", DigestSize)
	tests := []struct {
		name   string
		detail string
		input  string
		code   lib.ErrorCode
	}{
		{
			name:   "valid",
			detail: "64 lowercase hex characters",
			input:  valid,
		},
		{
			name:   "surrounding whitespace",
			detail: "a trailing newline from stdin is tolerated",
			input:  "  " + valid + "\n",
		},
		{
			name:   "uppercase",
			detail: "hex decoding is case insensitive",
			input:  strings.ToUpper(valid),
		},
		{
			name:   "too short",
			detail: "one byte short",
			input:  valid[2:],
			code:   lib.CodeInvalidDigestLength,
		},
		{
			name:   "not hex",
			detail: "the right length but invalid characters",
			input:  strings.Repeat("zz", DigestSize),
			code:   lib.CodeInvalidDigestHex,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d, err := DigestFromHex(test.input)
			if test.code != 0 {
				require.Error(t, err)
				require.Equal(t, test.code, err.Code())
				return
			}
			require.NoError(t, err)
			require.Equal(t, valid, d.String())
		})
	}
}

func TestNewDigest(t *testing.T) {
	_, err := NewDigest(make([]byte, DigestSize-1))
	require.Error(t, err)
	require.Equal(t, lib.CodeInvalidDigestLength, err.Code())
	bz := crypto.Hash([]byte("leaf"))
	d, err := NewDigest(bz)
	require.NoError(t, err)
	require.Equal(t, bz, d.Bytes())
	require.False(t, d.IsZero())
	require.True(t, ZeroDigest.IsZero())
}

func TestCombine(t *testing.T) {
	a, b := Digest(crypto.Sum([]byte("a"))), Digest(crypto.Sum([]byte("b")))
	// the parent is the hash of the concatenated children
	require.Equal(t, crypto.Hash(append(a.Bytes(), b.Bytes()...)), Combine(a, b).Bytes())
	// the order of the children matters
	require.NotEqual(t, Combine(a, b), Combine(b, a))
}

func TestDigestJSON(t *testing.T) {
	d := Digest(crypto.Sum([]byte("json")))
	bz, err := json.Marshal(d)
	require.NoError(t, err)
	require.Equal(t, `"`+d.String()+`"`, string(bz))
	var got Digest
	require.NoError(t, json.Unmarshal(bz, &got))
	require.Equal(t, d, got)
	require.Error(t, json.Unmarshal([]byte(`"00"`), &got))
}
