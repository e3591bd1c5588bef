//go:build !darwin

package main

import (
	"errors"
	"io"
)

func metalImport(io.Writer, string) error {
	return errors.New("go-metal requires macOS")
}
