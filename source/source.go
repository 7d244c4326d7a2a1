package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/canopy-network/merklevault/lib"
	"github.com/canopy-network/merklevault/lib/crypto"
	"github.com/canopy-network/merklevault/merkle"
	pool "github.com/libp2p/go-buffer-pool"
	"golang.org/x/sync/errgroup"
)

/*
	This file implements the 'leaf source' of a merkle tree: anything that can produce an ordered,
	reproducible list of leaf digests. A directory of files is the usual one, where each file is a
	leaf and the file name order is the leaf order.
*/

// hashBufferSize is the size of the pooled read buffer used when streaming content into the hasher
const hashBufferSize = 64 * 1024

// SourceI is an ordered and reproducible list of leaf digests
type SourceI interface {
	// Digests() returns the leaves in order; the same input must always produce the same output
	Digests(ctx context.Context) ([]merkle.Digest, lib.ErrorI)
}

var (
	_ SourceI = StaticSource{}
	_ SourceI = &DirSource{}
)

// StaticSource is a fixed in-memory list of digests
type StaticSource []merkle.Digest

// Digests() returns a copy of the list
func (s StaticSource) Digests(_ context.Context) ([]merkle.Digest, lib.ErrorI) {
	return append([]merkle.Digest(nil), s...), nil
}

// DirSource is every regular file of a single directory, hashed in file name order
type DirSource struct {
	Dir     string // the directory to list
	Workers int    // the max number of files hashed at once, <= 0 means GOMAXPROCS
}

// NewDirSource() creates a directory source with the default worker count
func NewDirSource(dir string) *DirSource { return &DirSource{Dir: dir} }

// Digests() hashes every file of the directory in parallel
// Each digest is written at its file's position so completion order doesn't affect the output
func (s *DirSource) Digests(ctx context.Context) ([]merkle.Digest, lib.ErrorI) {
	paths, err := ListFiles(s.Dir)
	if err != nil {
		return nil, err
	}
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	digests := make([]merkle.Digest, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			// stop early if a sibling failed or the caller gave up
			if e := ctx.Err(); e != nil {
				return e
			}
			d, e := HashFile(path)
			if e != nil {
				return e
			}
			digests[i] = d
			return nil
		})
	}
	if e := g.Wait(); e != nil {
		if errI, ok := e.(lib.ErrorI); ok {
			return nil, errI
		}
		return nil, ErrHashPool(e)
	}
	return digests, nil
}

// ListFiles() returns the paths of the regular files in dir, ordered by file name (byte-wise)
// Directories, symlinks and other special files are skipped
func ListFiles(dir string) ([]string, lib.ErrorI) {
	// os.ReadDir returns the entries sorted by file name
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ErrReadDir(err)
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}

// HashContent() returns the leaf digest of an in-memory blob
func HashContent(bz []byte) merkle.Digest { return crypto.Sum(bz) }

// HashFile() returns the leaf digest of a file's content
func HashFile(path string) (merkle.Digest, lib.ErrorI) {
	f, err := os.Open(path)
	if err != nil {
		return merkle.Digest{}, ErrOpenFile(err)
	}
	defer f.Close()
	return HashReader(f)
}

// HashReader() streams r into the hasher using a pooled buffer
func HashReader(r io.Reader) (d merkle.Digest, err lib.ErrorI) {
	buf := pool.Get(hashBufferSize)
	defer pool.Put(buf)
	h := crypto.Hasher()
	// hide any WriterTo so the pooled buffer is actually used
	if _, e := io.CopyBuffer(h, struct{ io.Reader }{r}, buf); e != nil {
		return d, ErrHashFile(e)
	}
	copy(d[:], h.Sum(nil))
	return
}
