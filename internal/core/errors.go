package core

import (
	"errors"
	"fmt"
)

// Failure kinds a Session can run into while starting. Callers above the
// Session only ever see the rendered message.
var (
	ErrCredential = errors.New("credential error")
	ErrConnect    = errors.New("connect error")
	ErrDevice     = errors.New("device error")
	ErrPublish    = errors.New("publish error")

	ErrNoEndpoint = fmt.Errorf("%w: no transport endpoint", ErrConnect)
)
