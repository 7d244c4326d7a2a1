package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"path/filepath"

	"github.com/canopy-network/merklevault/lib"
	"github.com/canopy-network/merklevault/merkle"
	"github.com/canopy-network/merklevault/source"
	"github.com/dgraph-io/badger/v4"
)

var (
	filePrefix  = lib.JoinLenPrefix([]byte("f/")) // prefix designated for uploaded file content, keyed by upload index
	proofPrefix = lib.JoinLenPrefix([]byte("p/")) // prefix designated for the proofs of the committed tree, keyed by leaf index
	rootKey     = lib.JoinLenPrefix([]byte("r/")) // the single key of the committed root

	_ source.SourceI = &Store{} // the uploaded files are a leaf source
)

/*
The Store is a thin persistence layer over a single BadgerDB instance that holds everything a
vault server knows about:

1. Files: the raw content of every upload, keyed by its index. Indices are big endian so prefix
   iteration visits files in leaf order.

2. Commit: the root of the tree last built over all files, and the proof of every leaf of that
   tree. Any upload deletes the root in the same transaction, so an absent root always means the
   stored proofs may be stale and a new commit is needed before serving.
*/
type Store struct {
	db  *badger.DB  // underlying database
	log lib.LoggerI // logger
}

// New() creates a new instance of a Store either in memory or an actual disk DB
func New(config lib.StoreConfig, l lib.LoggerI) (*Store, lib.ErrorI) {
	opts := badger.DefaultOptions(filepath.Join(config.DataDirPath, config.DBName))
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	db, err := badger.Open(opts.WithLogger(badgerLogger{l}).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, ErrOpenDB(err)
	}
	return &Store{db: db, log: l}, nil
}

// NewStoreInMemory() creates a new instance of a mem DB
func NewStoreInMemory(l lib.LoggerI) (*Store, lib.ErrorI) {
	return New(lib.StoreConfig{InMemory: true}, l)
}

// SetFile() stores the content of the file at index and invalidates the committed root
func (s *Store) SetFile(index uint64, bz []byte) lib.ErrorI {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(fileKey(index), bz); err != nil {
			return ErrStoreSet(err)
		}
		if err := txn.Delete(rootKey); err != nil {
			return ErrStoreDelete(err)
		}
		return nil
	})
	return asErrorI(err, ErrCommitDB)
}

// GetFile() returns the content of the file at index or nil if it doesn't exist
func (s *Store) GetFile(index uint64) ([]byte, lib.ErrorI) {
	bz, _, err := s.get(fileKey(index))
	return bz, err
}

// FileCount() returns the number of stored files
func (s *Store) FileCount() (count uint64, err lib.ErrorI) {
	e := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: filePrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, asErrorI(e, ErrStoreGet)
}

// Digests() hashes every stored file in index order
// The indices must be contiguous from 0, a gap means an upload is missing and no tree can be built
func (s *Store) Digests(ctx context.Context) (digests []merkle.Digest, err lib.ErrorI) {
	e := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: filePrefix, PrefetchValues: true, PrefetchSize: 16})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ErrStoreGet(ctxErr)
			}
			item := it.Item()
			index, e := indexFromKey(item.Key(), filePrefix)
			if e != nil {
				return e
			}
			// the next expected index is the number of digests collected so far
			if expected := uint64(len(digests)); index != expected {
				return ErrMissingFile(expected)
			}
			if er := item.Value(func(val []byte) error {
				digests = append(digests, source.HashContent(val))
				return nil
			}); er != nil {
				return ErrStoreGet(er)
			}
		}
		return nil
	})
	if err = asErrorI(e, ErrStoreGet); err != nil {
		return nil, err
	}
	return digests, nil
}

// SetCommit() persists every proof of the tree, then its root
// Proofs of a previous, larger tree are deleted so no stale proof can be served
// The write batch may flush as several transactions so the commit is not atomic, the root is written last
func (s *Store) SetCommit(tree *merkle.Tree) lib.ErrorI {
	// collect the stale proof keys
	var stale [][]byte
	if e := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: proofPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			index, err := indexFromKey(it.Item().Key(), proofPrefix)
			if err != nil {
				return err
			}
			if index >= uint64(tree.Size()) {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		return nil
	}); e != nil {
		return asErrorI(e, ErrStoreGet)
	}
	// batch the writes, badger splits the batch into transactions as it fills
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return ErrStoreDelete(err)
		}
	}
	for i := 0; i < tree.Size(); i++ {
		proof, err := tree.Proof(uint64(i))
		if err != nil {
			return err
		}
		if e := wb.Set(proofKey(uint64(i)), proof.Bytes()); e != nil {
			return ErrStoreSet(e)
		}
	}
	// the root is written last, a reader never sees a root without its proofs
	if err := wb.Set(rootKey, tree.Root().Bytes()); err != nil {
		return ErrStoreSet(err)
	}
	if err := wb.Flush(); err != nil {
		return ErrCommitDB(err)
	}
	s.log.Debugf("Committed root %s over %d files", tree.Root(), tree.Size())
	return nil
}

// GetProof() returns the committed proof of the leaf at index
// found is false if no proof exists for index; an empty proof is valid for a single leaf tree
func (s *Store) GetProof(index uint64) (proof merkle.Proof, found bool, err lib.ErrorI) {
	bz, found, err := s.get(proofKey(index))
	if err != nil || !found {
		return nil, found, err
	}
	if proof, err = merkle.ProofFromBytes(bz); err != nil {
		return nil, false, err
	}
	return proof, true, nil
}

// GetRoot() returns the committed root
// found is false if nothing was committed since the last upload
func (s *Store) GetRoot() (root merkle.Digest, found bool, err lib.ErrorI) {
	bz, found, err := s.get(rootKey)
	if err != nil || !found {
		return root, found, err
	}
	if root, err = merkle.NewDigest(bz); err != nil {
		return root, false, err
	}
	return root, true, nil
}

// Close() closes the underlying database
func (s *Store) Close() lib.ErrorI {
	if err := s.db.Close(); err != nil {
		return ErrCloseDB(err)
	}
	return nil
}

// get() retrieves a copy of the value at key
func (s *Store) get(key []byte) (bz []byte, found bool, err lib.ErrorI) {
	e := s.db.View(func(txn *badger.Txn) error {
		item, er := txn.Get(key)
		if er != nil {
			if er == badger.ErrKeyNotFound {
				return nil
			}
			return ErrStoreGet(er)
		}
		found = true
		if bz, er = item.ValueCopy(nil); er != nil {
			return ErrStoreGet(er)
		}
		return nil
	})
	return bz, found, asErrorI(e, ErrStoreGet)
}

// fileKey() returns the key of the file content at index
func fileKey(index uint64) []byte { return lib.JoinLenPrefix([]byte("f/"), indexBytes(index)) }

// proofKey() returns the key of the proof of the leaf at index
func proofKey(index uint64) []byte { return lib.JoinLenPrefix([]byte("p/"), indexBytes(index)) }

// indexBytes() encodes an index in big endian so byte order equals numeric order
func indexBytes(index uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, index)
}

// indexFromKey() decodes the index segment of a prefixed key
func indexFromKey(key, prefix []byte) (uint64, lib.ErrorI) {
	segments, ok := lib.DecodeLengthPrefixed(key)
	if !ok || len(segments) != 2 || !bytes.Equal(segments[0], prefix[1:]) || len(segments[1]) != 8 {
		return 0, ErrCorruptKey(key)
	}
	return binary.BigEndian.Uint64(segments[1]), nil
}

// asErrorI() passes through an ErrorI returned from inside a badger transaction and wraps anything else
func asErrorI(err error, wrap func(error) lib.ErrorI) lib.ErrorI {
	if err == nil {
		return nil
	}
	if e, ok := err.(lib.ErrorI); ok {
		return e
	}
	return wrap(err)
}

// badgerLogger adapts the project's logger to the badger.Logger interface
type badgerLogger struct{ lib.LoggerI }

// Warningf() is badger's name for Warnf()
func (b badgerLogger) Warningf(format string, args ...interface{}) { b.Warnf(format, args...) }
