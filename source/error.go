package source

import (
	"fmt"

	"github.com/canopy-network/merklevault/lib"
)

func ErrReadDir(err error) lib.ErrorI {
	return lib.NewError(lib.CodeReadDir, lib.SourceModule, fmt.Sprintf("os.ReadDir() failed with err: %s", err.Error()))
}

func ErrOpenFile(err error) lib.ErrorI {
	return lib.NewError(lib.CodeOpenFile, lib.SourceModule, fmt.Sprintf("os.Open() failed with err: %s", err.Error()))
}

func ErrHashFile(err error) lib.ErrorI {
	return lib.NewError(lib.CodeHashFile, lib.SourceModule, fmt.Sprintf("hashing content failed with err: %s", err.Error()))
}

func ErrHashPool(err error) lib.ErrorI {
	return lib.NewError(lib.CodeHashPool, lib.SourceModule, fmt.Sprintf("parallel hashing stopped with err: %s", err.Error()))
}
