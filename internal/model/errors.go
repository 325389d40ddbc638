package model

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyCancelled = errors.New("reservation already cancelled")
)
