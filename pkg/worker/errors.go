package worker

import "errors"

var ErrExited = errors.New("workers terminated")
