package rpc

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/canopy-network/merklevault/lib"
	"github.com/canopy-network/merklevault/merkle"
	"github.com/canopy-network/merklevault/source"
	"github.com/canopy-network/merklevault/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestUploadDownloadVerify(t *testing.T) {
	s, client, cleanup := testServer(t, 0)
	defer cleanup()
	var files [][]byte
	for i := 0; i < 7; i++ {
		files = append(files, []byte(fmt.Sprintf("file number %d", i)))
	}
	// upload in reverse order, one request per file
	for i := len(files) - 1; i >= 0; i-- {
		indices, err := client.Upload(uint64(i), bytes.NewReader(files[i]))
		require.NoError(t, err)
		require.Equal(t, []uint64{uint64(i)}, indices)
	}
	status, err := client.Status()
	require.NoError(t, err)
	require.True(t, status.Committed)
	require.Equal(t, 7, status.LeafCount)
	require.Equal(t, 3, status.Depth)
	root, err := client.Root()
	require.NoError(t, err)
	require.Equal(t, expectedRoot(files), root)
	require.Equal(t, root, status.Root)
	// every downloaded file verifies against the root with its proof
	for i := range files {
		file, e := client.File(uint64(i))
		require.NoError(t, e)
		require.Equal(t, files[i], file)
		proof, e := client.Proof(uint64(i))
		require.NoError(t, e)
		require.Len(t, proof, 3)
		require.NoError(t, merkle.VerifyLeaf(root, uint64(i), source.HashContent(file), proof))
	}
	require.Equal(t, float64(7), testutil.ToFloat64(s.metrics.Uploads))
	require.Equal(t, float64(7), testutil.ToFloat64(s.metrics.FilesServed))
	require.Equal(t, float64(7), testutil.ToFloat64(s.metrics.ProofsServed))
	require.Equal(t, float64(7), testutil.ToFloat64(s.metrics.LeafCount))
}

func TestUploadFiles(t *testing.T) {
	// a throttled client streams each file in its own request
	_, client, cleanup := testServer(t, 1<<20)
	defer cleanup()
	dir := t.TempDir()
	var (
		paths []string
		files [][]byte
	)
	for i := 0; i < 5; i++ {
		content := bytes.Repeat([]byte{byte(i)}, 1000+i)
		path := filepath.Join(dir, fmt.Sprintf("f%d", i))
		require.NoError(t, os.WriteFile(path, content, 0644))
		paths, files = append(paths, path), append(files, content)
	}
	indices, err := client.UploadFiles(paths)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1, 2, 3, 4}, indices)
	root, err := client.Root()
	require.NoError(t, err)
	require.Equal(t, expectedRoot(files), root)
}

func TestUploadFilesBodyLimitPerFile(t *testing.T) {
	s, client, cleanup := testServer(t, 0)
	defer cleanup()
	// each file fits under the body limit but all of them together do not
	s.config.MaxUploadBytes = 1024
	dir := t.TempDir()
	var (
		paths []string
		files [][]byte
	)
	for i := 0; i < 4; i++ {
		content := bytes.Repeat([]byte{byte(i + 1)}, 512)
		path := filepath.Join(dir, fmt.Sprintf("f%d", i))
		require.NoError(t, os.WriteFile(path, content, 0644))
		paths, files = append(paths, path), append(files, content)
	}
	indices, err := client.UploadFiles(paths)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1, 2, 3}, indices)
	count, err := s.store.FileCount()
	require.NoError(t, err)
	require.Equal(t, uint64(4), count)
	root, err := client.Root()
	require.NoError(t, err)
	require.Equal(t, expectedRoot(files), root)
}

func TestUploadMissingSource(t *testing.T) {
	_, client, cleanup := testServer(t, 0)
	defer cleanup()
	_, err := client.UploadFiles([]string{filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	require.Equal(t, lib.CodeReadFile, err.Code())
}

func TestUploadInvalidFilename(t *testing.T) {
	tests := []struct {
		name     string
		detail   string
		filename string
	}{
		{
			name:     "word",
			detail:   "the file name is not a number",
			filename: "first",
		},
		{
			name:     "negative",
			detail:   "indices are unsigned",
			filename: "-1",
		},
		{
			name:     "empty",
			detail:   "a form file without a name",
			filename: "",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s, _, cleanup := testServer(t, 0)
			defer cleanup()
			body, contentType := multipartBody(t, test.filename, []byte("content"))
			req := httptest.NewRequest(http.MethodPost, UploadRoutePath, body)
			req.Header.Set(ContentType, contentType)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), "Invalid filename. Must be an index of the file, but got: "+test.filename)
			// nothing was stored
			count, err := s.store.FileCount()
			require.NoError(t, err)
			require.Zero(t, count)
		})
	}
}

func TestUploadNotMultipart(t *testing.T) {
	s, _, cleanup := testServer(t, 0)
	defer cleanup()
	req := httptest.NewRequest(http.MethodPost, UploadRoutePath, bytes.NewReader([]byte("raw")))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadTooLarge(t *testing.T) {
	s, _, cleanup := testServer(t, 0)
	defer cleanup()
	s.config.MaxUploadBytes = 64
	body, contentType := multipartBody(t, "0", bytes.Repeat([]byte{1}, 1024))
	req := httptest.NewRequest(http.MethodPost, UploadRoutePath, body)
	req.Header.Set(ContentType, contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadErrors(t *testing.T) {
	tests := []struct {
		name   string
		detail string
		path   string
		status int
	}{
		{
			name:   "proof past the last leaf",
			detail: "the tree has two leaves",
			path:   "/v1/proof/2",
			status: http.StatusNotFound,
		},
		{
			name:   "file past the last leaf",
			detail: "the tree has two leaves",
			path:   "/v1/file/2",
			status: http.StatusNotFound,
		},
		{
			name:   "non numeric index",
			detail: "the index must be a decimal number",
			path:   "/v1/proof/abc",
			status: http.StatusBadRequest,
		},
		{
			name:   "index overflow",
			detail: "the index must fit in 64 bits",
			path:   "/v1/file/18446744073709551616",
			status: http.StatusBadRequest,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s, client, cleanup := testServer(t, 0)
			defer cleanup()
			for i := uint64(0); i < 2; i++ {
				_, err := client.Upload(i, bytes.NewReader([]byte{byte(i)}))
				require.NoError(t, err)
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, test.path, nil))
			require.Equal(t, test.status, rec.Code)
		})
	}
}

func TestMissingIndex(t *testing.T) {
	_, client, cleanup := testServer(t, 0)
	defer cleanup()
	// index 1 is never uploaded
	for _, i := range []uint64{0, 2} {
		_, err := client.Upload(i, bytes.NewReader([]byte{byte(i)}))
		require.NoError(t, err)
	}
	status, err := client.Status()
	require.NoError(t, err)
	require.False(t, status.Committed)
	require.Equal(t, 2, status.LeafCount)
	require.True(t, status.Root.IsZero())
	_, err = client.Proof(0)
	require.Error(t, err)
	require.Contains(t, err.Error(), fmt.Sprintf("code %d", http.StatusConflict))
	require.Contains(t, err.Error(), "file with index 1 was never uploaded")
	// filling the gap commits
	_, err = client.Upload(1, bytes.NewReader([]byte{1}))
	require.NoError(t, err)
	status, err = client.Status()
	require.NoError(t, err)
	require.True(t, status.Committed)
	require.Equal(t, 3, status.LeafCount)
}

func TestReuploadChangesRoot(t *testing.T) {
	_, client, cleanup := testServer(t, 0)
	defer cleanup()
	for i := uint64(0); i < 3; i++ {
		_, err := client.Upload(i, bytes.NewReader([]byte{byte(i)}))
		require.NoError(t, err)
	}
	before, err := client.Root()
	require.NoError(t, err)
	_, err = client.Upload(1, bytes.NewReader([]byte("replaced")))
	require.NoError(t, err)
	after, err := client.Root()
	require.NoError(t, err)
	require.NotEqual(t, before, after)
	require.Equal(t, expectedRoot([][]byte{{0}, []byte("replaced"), {2}}), after)
	// the proof served for an untouched file follows the new root
	proof, err := client.Proof(0)
	require.NoError(t, err)
	require.NoError(t, merkle.VerifyLeaf(after, 0, source.HashContent([]byte{0}), proof))
}

func TestEmptyVault(t *testing.T) {
	_, client, cleanup := testServer(t, 0)
	defer cleanup()
	root, err := client.Root()
	require.NoError(t, err)
	require.True(t, root.IsZero())
	status, err := client.Status()
	require.NoError(t, err)
	require.True(t, status.Committed)
	require.Zero(t, status.LeafCount)
	_, err = client.Proof(0)
	require.Error(t, err)
	require.Contains(t, err.Error(), fmt.Sprintf("code %d", http.StatusNotFound))
}

func TestCommitSurvivesRestart(t *testing.T) {
	config := lib.DefaultConfig()
	config.DataDirPath = t.TempDir()
	logger := lib.NewNullLogger()
	db, err := store.New(config.StoreConfig, logger)
	require.NoError(t, err)
	s := NewServer(db, config, nil, logger)
	ts := httptest.NewServer(s.Handler())
	client := NewClient(ts.URL, 0)
	for i := uint64(0); i < 4; i++ {
		_, e := client.Upload(i, bytes.NewReader([]byte{byte(i)}))
		require.NoError(t, e)
	}
	before, err := client.Root()
	require.NoError(t, err)
	ts.Close()
	require.NoError(t, db.Close())
	// reopen the same database
	db, err = store.New(config.StoreConfig, logger)
	require.NoError(t, err)
	defer func() { require.NoError(t, db.Close()) }()
	stored, found, err := db.GetRoot()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, before, stored)
	ts = httptest.NewServer(NewServer(db, config, nil, logger).Handler())
	defer ts.Close()
	after, err := NewClient(ts.URL, 0).Root()
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestServerStart(t *testing.T) {
	config := lib.DefaultConfig()
	config.RPCPort = "0"
	db, err := store.NewStoreInMemory(lib.NewNullLogger())
	require.NoError(t, err)
	defer func() { require.NoError(t, db.Close()) }()
	s := NewServer(db, config, nil, lib.NewNullLogger())
	require.Nil(t, s.Addr())
	require.NoError(t, s.Start())
	defer s.Stop()
	port := s.Addr().(*net.TCPAddr).Port
	client := NewClient(fmt.Sprintf("http://localhost:%d", port), 0)
	version, err := client.Version()
	require.NoError(t, err)
	require.Equal(t, SoftwareVersion, *version)
}

func TestClientURL(t *testing.T) {
	client := NewClient("http://localhost:8000/", 0)
	require.Equal(t, "http://localhost:8000/v1/proof/12", client.url(ProofRouteName, "12"))
	require.Equal(t, "http://localhost:8000/v1/root", client.url(RootRouteName, ""))
}

// expectedRoot() computes the root of files the way a client would
func expectedRoot(files [][]byte) merkle.Digest {
	var leaves []merkle.Digest
	for _, f := range files {
		leaves = append(leaves, source.HashContent(f))
	}
	return merkle.NewTree(leaves).Root()
}

// multipartBody() encodes content as a single form file named filename
func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile(uploadFormField, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func testServer(t *testing.T, uploadRate int64) (*Server, *Client, func()) {
	config := lib.DefaultConfig()
	logger := lib.NewNullLogger()
	db, err := store.NewStoreInMemory(logger)
	require.NoError(t, err)
	s := NewServer(db, config, lib.NewMetricsServer(config.MetricsConfig, logger), logger)
	ts := httptest.NewServer(s.Handler())
	return s, NewClient(ts.URL, uploadRate), func() {
		ts.Close()
		require.NoError(t, db.Close())
	}
}
