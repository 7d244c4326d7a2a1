package rpc

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// the name of the path parameter that carries a leaf index
const indexParamName = "index"

// Vault RPC Paths
const (
	VersionRoutePath       = "/v1/"
	UploadRoutePath        = "/v1/upload"
	FileRoutePath          = "/v1/file/:" + indexParamName
	ProofRoutePath         = "/v1/proof/:" + indexParamName
	RootRoutePath          = "/v1/root"
	StatusRoutePath        = "/v1/status"
	ResourceUsageRoutePath = "/v1/admin/resource-usage"
)

const (
	VersionRouteName       = "version"
	UploadRouteName        = "upload"
	FileRouteName          = "file"
	ProofRouteName         = "proof"
	RootRouteName          = "root"
	StatusRouteName        = "status"
	ResourceUsageRouteName = "resource-usage"
)

// routes contains the method and path for a vault RPC route
type routes map[string]struct {
	Method string
	Path   string
}

// routePaths is a mapping from route names to their corresponding HTTP methods and paths
var routePaths = routes{
	VersionRouteName:       {Method: http.MethodGet, Path: VersionRoutePath},
	UploadRouteName:        {Method: http.MethodPost, Path: UploadRoutePath},
	FileRouteName:          {Method: http.MethodGet, Path: FileRoutePath},
	ProofRouteName:         {Method: http.MethodGet, Path: ProofRoutePath},
	RootRouteName:          {Method: http.MethodGet, Path: RootRoutePath},
	StatusRouteName:        {Method: http.MethodGet, Path: StatusRoutePath},
	ResourceUsageRouteName: {Method: http.MethodGet, Path: ResourceUsageRoutePath},
}

// httpRouteHandlers is a custom type that maps strings to httprouter handle functions
type httpRouteHandlers map[string]httprouter.Handle

// createRouter initializes and returns a new HTTP router with predefined route handlers.
func createRouter(s *Server) *httprouter.Router {
	var r = httpRouteHandlers{
		VersionRouteName:       s.Version,
		UploadRouteName:        s.Upload,
		FileRouteName:          s.File,
		ProofRouteName:         s.Proof,
		RootRouteName:          s.Root,
		StatusRouteName:        s.Status,
		ResourceUsageRouteName: s.ResourceUsage,
	}

	// Initialize a new router using the httprouter package.
	router := httprouter.New()

	for name, handler := range r {
		// Retrieve the path configuration for the current route name.
		path := routePaths[name]

		// Add the handler for the specific path and HTTP method to the router.
		router.Handle(path.Method, path.Path, logHandler{path.Path, handler, s.logger}.Handle)
	}

	return router
}
