package rpc

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/canopy-network/merklevault/lib"
	"github.com/julienschmidt/httprouter"
)

// Version responds with the software version
func (s *Server) Version(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	write(w, SoftwareVersion, http.StatusOK)
}

// Upload stores every part of a multipart body
// The file name of each part is the leaf index of its content
func (s *Server) Upload(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	defer func() { _ = r.Body.Close() }()
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, ErrMultipart(err))
		return
	}
	response := uploadResponse{Indices: []uint64{}}
	for {
		part, e := reader.NextPart()
		if errors.Is(e, io.EOF) {
			break
		}
		if e != nil {
			writeError(w, ErrMultipart(e))
			return
		}
		// the file name must be the decimal index of the file
		index, e := strconv.ParseUint(part.FileName(), 10, 64)
		if e != nil {
			writeError(w, ErrInvalidFileIndex(part.FileName()))
			return
		}
		bz, e := io.ReadAll(part)
		if e != nil {
			writeError(w, ErrMultipart(e))
			return
		}
		if er := s.storeFile(index, bz); er != nil {
			writeError(w, er)
			return
		}
		s.logger.Debugf("Stored file %d (%d bytes)", index, len(bz))
		s.metrics.UpdateUpload(len(bz))
		response.Indices = append(response.Indices, index)
	}
	write(w, response, http.StatusOK)
}

// File responds with the raw content of the file at index
func (s *Server) File(w http.ResponseWriter, _ *http.Request, p httprouter.Params) {
	index, ok := indexParam(w, p)
	if !ok {
		return
	}
	if _, err := s.committedTree(); err != nil {
		writeError(w, err)
		return
	}
	bz, err := s.store.GetFile(index)
	if err != nil {
		writeError(w, err)
		return
	}
	if bz == nil {
		writeError(w, ErrNotFound("file", index))
		return
	}
	s.metrics.UpdateFileServed()
	writeBytes(w, bz)
}

// Proof responds with the serialized proof of the leaf at index
func (s *Server) Proof(w http.ResponseWriter, _ *http.Request, p httprouter.Params) {
	index, ok := indexParam(w, p)
	if !ok {
		return
	}
	tree, err := s.committedTree()
	if err != nil {
		writeError(w, err)
		return
	}
	// reject indices outside the committed tree before touching the store
	if _, err = tree.Proof(index); err != nil {
		writeError(w, err)
		return
	}
	proof, found, err := s.store.GetProof(index)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeError(w, ErrNotFound("proof", index))
		return
	}
	s.metrics.UpdateProofServed()
	writeBytes(w, proof.Bytes())
}

// Root responds with the raw bytes of the committed root
func (s *Server) Root(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	tree, err := s.committedTree()
	if err != nil {
		writeError(w, err)
		return
	}
	writeBytes(w, tree.Root().Bytes())
}

// Status responds with a summary of the committed tree
// If the uploads can't be committed yet (an index is missing) it reports what is stored so far
func (s *Server) Status(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	tree, err := s.committedTree()
	if err == nil {
		write(w, StatusResponse{
			LeafCount: tree.Size(),
			Depth:     tree.Depth(),
			Committed: true,
			Root:      tree.Root(),
		}, http.StatusOK)
		return
	}
	if err.Module() != lib.StorageModule || err.Code() != lib.CodeMissingFile {
		writeError(w, err)
		return
	}
	count, e := s.store.FileCount()
	if e != nil {
		writeError(w, e)
		return
	}
	write(w, StatusResponse{LeafCount: int(count), Committed: false}, http.StatusOK)
}
