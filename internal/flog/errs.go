package flog

import (
	"errors"
	"io"
	"net"
)

// WErr filters errors that are routine during connection teardown.
// Returns nil when the error carries no signal worth logging: the
// reader goroutines of stopped sessions all surface net.ErrClosed or
// EOF when their socket is shut down, and logging each one would bury
// real failures.
func WErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
