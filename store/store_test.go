package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/canopy-network/merklevault/lib"
	"github.com/canopy-network/merklevault/merkle"
	"github.com/canopy-network/merklevault/source"
	"github.com/stretchr/testify/require"
)

func TestStoreSetGetFile(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	// absent is not an error
	got, err := store.GetFile(0)
	require.NoError(t, err)
	require.Nil(t, got)
	// set and get
	require.NoError(t, store.SetFile(0, []byte("a")))
	got, err = store.GetFile(0)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), got)
	// overwrite
	require.NoError(t, store.SetFile(0, []byte("b")))
	got, err = store.GetFile(0)
	require.NoError(t, err)
	require.Equal(t, []byte("b"), got)
	count, err := store.FileCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
}

func TestStoreDigestsOrder(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	var expected []merkle.Digest
	// upload out of order, across the 255/256 boundary where a little endian key would sort wrong
	const n = 300
	for i := n - 1; i >= 0; i-- {
		require.NoError(t, store.SetFile(uint64(i), []byte(fmt.Sprintf("file %d", i))))
	}
	for i := 0; i < n; i++ {
		expected = append(expected, source.HashContent([]byte(fmt.Sprintf("file %d", i))))
	}
	got, err := store.Digests(context.Background())
	require.NoError(t, err)
	require.Equal(t, expected, got)
}

func TestStoreDigestsEmpty(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	got, err := store.Digests(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestStoreDigestsGap(t *testing.T) {
	tests := []struct {
		name    string
		detail  string
		indices []uint64
		missing uint64
	}{
		{
			name:    "missing first",
			detail:  "indices must start at zero",
			indices: []uint64{1, 2},
			missing: 0,
		},
		{
			name:    "missing middle",
			detail:  "indices must be contiguous",
			indices: []uint64{0, 1, 3},
			missing: 2,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			store, cleanup := testStore(t)
			defer cleanup()
			for _, i := range test.indices {
				require.NoError(t, store.SetFile(i, []byte{byte(i)}))
			}
			_, err := store.Digests(context.Background())
			require.Error(t, err)
			require.Equal(t, lib.CodeMissingFile, err.Code())
			require.Contains(t, err.Error(), fmt.Sprintf("index %d", test.missing))
		})
	}
}

func TestStoreCommit(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	// nothing committed
	_, found, err := store.GetRoot()
	require.NoError(t, err)
	require.False(t, found)
	// upload and commit
	for i := 0; i < 5; i++ {
		require.NoError(t, store.SetFile(uint64(i), []byte{byte(i)}))
	}
	tree := commit(t, store)
	root, found, err := store.GetRoot()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, tree.Root(), root)
	// every stored proof verifies the stored file
	for i := 0; i < 5; i++ {
		proof, ok, e := store.GetProof(uint64(i))
		require.NoError(t, e)
		require.True(t, ok)
		file, e := store.GetFile(uint64(i))
		require.NoError(t, e)
		require.NoError(t, merkle.VerifyLeaf(root, uint64(i), source.HashContent(file), proof))
	}
	// no proof exists past the last leaf
	_, found, err = store.GetProof(5)
	require.NoError(t, err)
	require.False(t, found)
	// an upload invalidates the root
	require.NoError(t, store.SetFile(5, []byte{5}))
	_, found, err = store.GetRoot()
	require.NoError(t, err)
	require.False(t, found)
}

func TestStoreCommitRemovesStaleProofs(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	// commit a tree of 4 leaves
	for i := 0; i < 4; i++ {
		require.NoError(t, store.SetFile(uint64(i), []byte{byte(i)}))
	}
	commit(t, store)
	// a smaller tree replaces it
	small := merkle.NewTree([]merkle.Digest{source.HashContent([]byte{0})})
	require.NoError(t, store.SetCommit(small))
	proof, found, err := store.GetProof(0)
	require.NoError(t, err)
	require.True(t, found)
	// the single leaf tree has an empty proof
	require.Len(t, proof, 0)
	for i := uint64(1); i < 4; i++ {
		_, found, err = store.GetProof(i)
		require.NoError(t, err)
		require.False(t, found, "stale proof %d", i)
	}
	root, found, err := store.GetRoot()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, small.Root(), root)
}

func TestIndexFromKey(t *testing.T) {
	index, err := indexFromKey(fileKey(1<<40+7), filePrefix)
	require.NoError(t, err)
	require.Equal(t, uint64(1<<40+7), index)
	// a proof key is not a file key
	_, err = indexFromKey(proofKey(1), filePrefix)
	require.Error(t, err)
	require.Equal(t, lib.CodeCorruptKey, err.Code())
	// the root key has no index
	_, err = indexFromKey(rootKey, filePrefix)
	require.Error(t, err)
}

// commit() builds a tree over the stored files and commits it
func commit(t *testing.T, store *Store) *merkle.Tree {
	digests, err := store.Digests(context.Background())
	require.NoError(t, err)
	tree := merkle.NewTree(digests)
	require.NoError(t, store.SetCommit(tree))
	return tree
}

func testStore(t *testing.T) (*Store, func()) {
	store, err := NewStoreInMemory(lib.NewDefaultLogger())
	require.NoError(t, err)
	return store, func() { require.NoError(t, store.Close()) }
}

func TestStoreCommitLargeTree(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	// enough proofs that the write batch flushes as several transactions
	const n = 40000
	leaves := make([]merkle.Digest, n)
	for i := range leaves {
		leaves[i] = source.HashContent(indexBytes(uint64(i)))
	}
	tree := merkle.NewTree(leaves)
	require.NoError(t, store.SetCommit(tree))
	root, found, err := store.GetRoot()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, tree.Root(), root)
	for i := uint64(0); i < n; i++ {
		proof, ok, e := store.GetProof(i)
		require.NoError(t, e)
		require.True(t, ok, "missing proof %d", i)
		require.NoError(t, merkle.VerifyLeaf(root, i, leaves[i], proof))
	}
}
