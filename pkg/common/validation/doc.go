// Package validation provides common validation utilities for configuration
// parameters across the coreworks engine.
//
// The pool, queue and schedule constructors use these helpers so that every
// invalid setting surfaces as an errors.ValidationError wrapping
// errors.ErrInvalidConfiguration.
package validation
