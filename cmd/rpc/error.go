package rpc

import (
	"fmt"

	"github.com/canopy-network/merklevault/lib"
)

func ErrServerTimeout() lib.ErrorI {
	return lib.NewError(lib.CodeRPCTimeout, lib.RPCModule, "server timeout")
}

func ErrInvalidParams(err error) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidParams, lib.RPCModule, fmt.Sprintf("invalid params: %s", err.Error()))
}

func ErrPostRequest(err error) lib.ErrorI {
	return lib.NewError(lib.CodePostRequest, lib.RPCModule, fmt.Sprintf("http.Post() failed with err: %s", err.Error()))
}

func ErrGetRequest(err error) lib.ErrorI {
	return lib.NewError(lib.CodeGetRequest, lib.RPCModule, fmt.Sprintf("http.Get() failed with err: %s", err.Error()))
}

func ErrHttpStatus(status string, statusCode int, body []byte) lib.ErrorI {
	return lib.NewError(lib.CodeHttpStatus, lib.RPCModule, fmt.Sprintf("http response bad status %s with code %d and body %s", status, statusCode, body))
}

func ErrReadBody(err error) lib.ErrorI {
	return lib.NewError(lib.CodeReadBody, lib.RPCModule, fmt.Sprintf("io.ReadAll(http.ResponseBody) failed with err: %s", err.Error()))
}

func ErrInvalidFileIndex(filename string) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidFileIndex, lib.RPCModule, fmt.Sprintf("Invalid filename. Must be an index of the file, but got: %s", filename))
}

func ErrMultipart(err error) lib.ErrorI {
	return lib.NewError(lib.CodeMultipart, lib.RPCModule, fmt.Sprintf("reading multipart upload failed with err: %s", err.Error()))
}

func ErrNotFound(what string, index uint64) lib.ErrorI {
	return lib.NewError(lib.CodeNotFound, lib.RPCModule, fmt.Sprintf("no %s with index %d", what, index))
}

func ErrStartServer(err error) lib.ErrorI {
	return lib.NewError(lib.CodeStartServer, lib.RPCModule, fmt.Sprintf("starting the rpc server failed with err: %s", err.Error()))
}

func ErrResourceUsage(err error) lib.ErrorI {
	return lib.NewError(lib.CodeResourceUsage, lib.RPCModule, fmt.Sprintf("reading resource usage failed with err: %s", err.Error()))
}

func ErrUploadSourceRead(err error) lib.ErrorI {
	return lib.NewError(lib.CodeUploadSourceRead, lib.RPCModule, fmt.Sprintf("reading the upload source failed with err: %s", err.Error()))
}
