package queue

import "errors"

var ErrInvalidTicket = errors.New("ticket number must be a positive integer")
