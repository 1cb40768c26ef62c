package abacus

import "errors"

const Namespace = "abacus"

var (
	ErrInvalidConfig     = errors.New(Namespace + ": invalid configuration")
	ErrInvalidArgument   = errors.New(Namespace + ": argument out of range")
	ErrNotFound          = errors.New(Namespace + ": task not tracked")
	ErrAlreadyExists     = errors.New(Namespace + ": task already tracked")
	ErrInvalidTransition = errors.New(Namespace + ": invalid task transition")
	ErrNoData            = errors.New(Namespace + ": no data")
	ErrClosed            = errors.New(Namespace + ": closed")
)
