package lib

import (
	"fmt"
)

type ErrorI interface {
	Code() ErrorCode     // Returns the error code
	Module() ErrorModule // Returns the error module
	error                // Implements the built-in error interface
}

var _ ErrorI = &Error{} // Ensures *Error implements ErrorI

type ErrorCode uint32 // Defines a type for error codes

type ErrorModule string // Defines a type for error modules

type Error struct {
	ECode   ErrorCode   `json:"code"`   // Error code
	EModule ErrorModule `json:"module"` // Error module
	Msg     string      `json:"msg"`    // Error message
}

func NewError(code ErrorCode, module ErrorModule, msg string) *Error {
	// Constructs a new Error instance
	return &Error{ECode: code, EModule: module, Msg: msg}
}

// Code() returns the associated error code
func (p *Error) Code() ErrorCode { return p.ECode }

// Module() returns module field
func (p *Error) Module() ErrorModule { return p.EModule }

// String() calls Error()
func (p *Error) String() string { return p.Error() }

// Error() returns a formatted string including module, code and message
func (p *Error) Error() string {
	return fmt.Sprintf("\nModule:  %s\nCode:    %d\nMessage: %s", p.EModule, p.ECode, p.Msg)
}

const (
	// Main Module
	MainModule ErrorModule = "main"

	// Main Module Error Codes
	CodeJSONMarshal   ErrorCode = 2
	CodeJSONUnmarshal ErrorCode = 3
	CodeWriteFile     ErrorCode = 25
	CodeReadFile      ErrorCode = 26
	CodePanic         ErrorCode = 49

	// Merkle Module
	MerkleModule ErrorModule = "merkle"

	// Merkle Module Error Codes
	CodeInvalidIndex        ErrorCode = 1
	CodeProofFormat         ErrorCode = 2
	CodeRootMismatch        ErrorCode = 3
	CodeInvalidDigestLength ErrorCode = 4
	CodeInvalidDigestHex    ErrorCode = 5

	// Source Module
	SourceModule ErrorModule = "source"

	// Source Module Error Codes
	CodeReadDir  ErrorCode = 1
	CodeOpenFile ErrorCode = 2
	CodeHashFile ErrorCode = 3
	CodeHashPool ErrorCode = 4

	// Storage Module
	StorageModule ErrorModule = "store"

	// Storage Module Error Codes
	CodeOpenDB      ErrorCode = 1
	CodeCloseDB     ErrorCode = 2
	CodeStoreSet    ErrorCode = 3
	CodeStoreGet    ErrorCode = 4
	CodeStoreDelete ErrorCode = 5
	CodeCommitDB    ErrorCode = 6
	CodeMissingFile ErrorCode = 7
	CodeCorruptKey  ErrorCode = 8

	// RPC Module
	RPCModule ErrorModule = "rpc"

	// RPC Module Error Codes
	CodeRPCTimeout       ErrorCode = 1
	CodeInvalidParams    ErrorCode = 2
	CodePostRequest      ErrorCode = 3
	CodeGetRequest       ErrorCode = 4
	CodeHttpStatus       ErrorCode = 5
	CodeReadBody         ErrorCode = 6
	CodeInvalidFileIndex ErrorCode = 7
	CodeMultipart        ErrorCode = 8
	CodeNotFound         ErrorCode = 9
	CodeStartServer      ErrorCode = 10
	CodeResourceUsage    ErrorCode = 11
	CodeUploadSourceRead ErrorCode = 12
)

func ErrJSONMarshal(err error) ErrorI {
	return NewError(CodeJSONMarshal, MainModule, fmt.Sprintf("json.marshal() failed with err: %s", err.Error()))
}

func ErrJSONUnmarshal(err error) ErrorI {
	return NewError(CodeJSONUnmarshal, MainModule, fmt.Sprintf("json.unmarshal() failed with err: %s", err.Error()))
}

func ErrWriteFile(err error) ErrorI {
	return NewError(CodeWriteFile, MainModule, fmt.Sprintf("os.WriteFile() failed with err: %s", err.Error()))
}

func ErrReadFile(err error) ErrorI {
	return NewError(CodeReadFile, MainModule, fmt.Sprintf("os.ReadFile() failed with err: %s", err.Error()))
}

func ErrPanic(r any) ErrorI {
	return NewError(CodePanic, MainModule, fmt.Sprintf("recovered from panic: %v", r))
}
