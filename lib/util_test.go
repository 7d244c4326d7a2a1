package lib

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinLenPrefix(t *testing.T) {
	tests := []struct {
		name     string
		detail   string
		input    [][]byte
		expected []byte
	}{
		{
			name:     "single segment",
			detail:   "one length byte followed by the segment",
			input:    [][]byte{[]byte("f/")},
			expected: []byte{2, 'f', '/'},
		},
		{
			name:     "two segments",
			detail:   "each segment carries its own length",
			input:    [][]byte{[]byte("p/"), {0, 0, 0, 1}},
			expected: []byte{2, 'p', '/', 4, 0, 0, 0, 1},
		},
		{
			name:     "nil segment",
			detail:   "nil segments are skipped entirely",
			input:    [][]byte{[]byte("r/"), nil},
			expected: []byte{2, 'r', '/'},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := JoinLenPrefix(test.input...)
			require.Equal(t, test.expected, got)
			// decoding recovers every non-nil segment
			segments, ok := DecodeLengthPrefixed(got)
			require.True(t, ok)
			var expected [][]byte
			for _, s := range test.input {
				if s != nil {
					expected = append(expected, s)
				}
			}
			require.Equal(t, expected, segments)
		})
	}
}

func TestDecodeLengthPrefixedCorrupt(t *testing.T) {
	// the prefix claims 5 bytes but only 2 follow
	segments, ok := DecodeLengthPrefixed([]byte{5, 'a', 'b'})
	require.False(t, ok)
	require.Nil(t, segments)
}

func TestCatchPanic(t *testing.T) {
	require.NotPanics(t, func() {
		defer CatchPanic(NewNullLogger())
		panic("boom")
	})
}
