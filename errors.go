package retools

import "errors"

// Registration-time errors, raised immediately by Register.
var (
	ErrDuplicateToken      = errors.New("token already registered")
	ErrMissingFieldPattern = errors.New("field has no resolvable pattern")
	ErrInvalidSubtypeLink  = errors.New("supertype is not registered")
)

// ErrUnknownToken is returned by Lookup for names this builder never saw.
var ErrUnknownToken = errors.New("unknown token")

// Compile-time errors, raised on first compilation of an offending template.
var (
	ErrTemplateSyntax = errors.New("template syntax error")
	ErrCompileCycle   = errors.New("recursive token expansion never terminates")
)

// Reconstruction-time errors. Absence of a match is not an error; these
// cover a match that cannot be walked back into typed values.
var (
	ErrReconstruction    = errors.New("reconstruction failed")
	ErrUnknownOccurrence = errors.New("no such occurrence in compiled pattern")
)
