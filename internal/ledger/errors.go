package ledger

import "errors"

var (
	ErrUnknownField  = errors.New("unknown field")
	ErrReadOnlyField = errors.New("field is derived and cannot be edited")
	ErrRowOutOfRange = errors.New("row out of range")
	ErrUnknownKind   = errors.New("unknown ledger kind")
	ErrRowRemoved    = errors.New("row was removed before it could be saved")
)
