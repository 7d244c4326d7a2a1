package rpc

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/canopy-network/merklevault/lib"
	"github.com/canopy-network/merklevault/merkle"
	"github.com/canopy-network/merklevault/store"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"golang.org/x/net/netutil"
)

const (
	colon = ":"

	SoftwareVersion        = "0.1.0"
	ContentType            = "Content-Type"
	ApplicationJSON        = "application/json; charset=utf-8"
	ApplicationOctetStream = "application/octet-stream"
)

// Server is the vault's file server: it accepts uploads, commits a merkle tree over them and
// serves every file together with its inclusion proof
type Server struct {
	// persistence of files, proofs and the committed root
	store *store.Store

	// vault configuration
	config lib.Config

	// mu serializes uploads with commits and guards tree
	mu *sync.Mutex

	// the tree of the latest commit, nil if a file was uploaded since
	tree *merkle.Tree

	// the underlying http server and its listener, set by Start()
	server   *http.Server
	listener net.Listener

	metrics *lib.Metrics
	logger  lib.LoggerI
}

// NewServer constructs and returns a new vault RPC server
func NewServer(db *store.Store, config lib.Config, metrics *lib.Metrics, logger lib.LoggerI) *Server {
	return &Server{
		store:   db,
		config:  config,
		mu:      &sync.Mutex{},
		metrics: metrics,
		logger:  logger,
	}
}

// Start listens on the configured port and serves in the background
func (s *Server) Start() lib.ErrorI {
	ln, err := net.Listen("tcp", colon+s.config.RPCPort)
	if err != nil {
		return ErrStartServer(err)
	}
	// cap the number of simultaneously open connections
	if s.config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.config.MaxConnections)
	}
	s.listener = ln
	s.server = &http.Server{Handler: s.Handler()}
	s.logger.Infof("Starting RPC server at %s", ln.Addr().String())
	go func() {
		defer lib.CatchPanic(s.logger)
		if e := s.server.Serve(ln); e != nil && e != http.ErrServerClosed {
			s.logger.Errorf("RPC server failed with err: %s", e.Error())
		}
	}()
	return nil
}

// Addr returns the address the server listens on, or nil if not started
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.config.TimeoutS)*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error(err.Error())
	}
}

// Handler returns the full http handler: routes wrapped by the CORS policy and request timeout
func (s *Server) Handler() http.Handler {
	// Create CORS policy
	cor := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS", "POST"},
	})
	// Create a default timeout for HTTP requests
	timeout := time.Duration(s.config.TimeoutS) * time.Second
	return cor.Handler(http.TimeoutHandler(createRouter(s), timeout, ErrServerTimeout().Error()))
}

// committedTree returns the tree over every uploaded file, committing it first if needed
func (s *Server) committedTree() (*merkle.Tree, lib.ErrorI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree != nil {
		return s.tree, nil
	}
	start := time.Now()
	digests, err := s.store.Digests(context.Background())
	if err != nil {
		return nil, err
	}
	tree := merkle.NewTree(digests)
	// skip the write if the stored commit already matches, which is the case after a restart
	root, found, err := s.store.GetRoot()
	if err != nil {
		return nil, err
	}
	if !found || root != tree.Root() {
		if err = s.store.SetCommit(tree); err != nil {
			return nil, err
		}
		s.logger.Infof("Merkle root: %s", tree.Root())
	}
	s.tree = tree
	s.metrics.UpdateCommitMetrics(tree.Size(), tree.Depth(), time.Since(start))
	return tree, nil
}

// storeFile persists an upload and invalidates the committed tree
func (s *Server) storeFile(index uint64, bz []byte) lib.ErrorI {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.SetFile(index, bz); err != nil {
		return err
	}
	s.tree = nil
	return nil
}

// logHandler serves as a middleware that logs incoming RPC calls for debugging purposes.
type logHandler struct {
	path   string
	h      httprouter.Handle
	logger lib.LoggerI
}

// Handle
func (h logHandler) Handle(resp http.ResponseWriter, req *http.Request, p httprouter.Params) {
	h.logger.Debugf("%s %s", req.Method, req.URL.Path)
	// Call the actual handler function with the response, request, and parameters.
	h.h(resp, req, p)
}

// indexParam parses the ':index' path parameter
func indexParam(w http.ResponseWriter, p httprouter.Params) (uint64, bool) {
	s := p.ByName(indexParamName)
	index, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		write(w, ErrInvalidParams(err), http.StatusBadRequest)
		return 0, false
	}
	return index, true
}

// writeError maps an error to its http status and writes it
func writeError(w http.ResponseWriter, err lib.ErrorI) {
	code := http.StatusInternalServerError
	// codes are only unique within a module
	switch err.Module() {
	case lib.MerkleModule:
		if err.Code() == lib.CodeInvalidIndex {
			code = http.StatusNotFound
		}
	case lib.StorageModule:
		if err.Code() == lib.CodeMissingFile {
			code = http.StatusConflict
		}
	case lib.RPCModule:
		switch err.Code() {
		case lib.CodeNotFound:
			code = http.StatusNotFound
		case lib.CodeInvalidFileIndex, lib.CodeMultipart, lib.CodeInvalidParams:
			code = http.StatusBadRequest
		}
	}
	write(w, err, code)
}

// write marshaled payload to w
func write(w http.ResponseWriter, payload interface{}, code int) {
	w.Header().Set(ContentType, ApplicationJSON)
	w.WriteHeader(code)
	// Marshal and indent the payload
	bz, _ := json.MarshalIndent(payload, "", "  ")
	_, _ = w.Write(bz)
}

// writeBytes writes raw bytes to w
func writeBytes(w http.ResponseWriter, bz []byte) {
	w.Header().Set(ContentType, ApplicationOctetStream)
	w.Header().Set("Content-Length", strconv.Itoa(len(bz)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(bz)
}
