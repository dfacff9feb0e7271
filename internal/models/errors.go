package models

import "errors"

var (
	// ErrMissingCredential is returned when the generation API key is not configured
	ErrMissingCredential = errors.New("missing generation API credential")

	// ErrModel marks failures of the embedding or generation backend
	ErrModel = errors.New("model error")

	// ErrTableNotFound is returned by store drivers when the evidence table does not exist yet
	ErrTableNotFound = errors.New("table not found")
)
