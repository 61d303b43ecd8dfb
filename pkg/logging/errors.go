package logging

import "errors"

var ErrInvalidRotation = errors.New("invalid log file rotation settings")
