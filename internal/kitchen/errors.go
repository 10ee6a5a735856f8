package kitchen

import "errors"

var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrLineNotFound      = errors.New("ticket line not found")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrVersionConflict   = errors.New("model version conflict")
)
