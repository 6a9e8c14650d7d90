// Package middleware provides s3types.Backend decorators.
//
// Decorators stack: each wraps another backend and forwards every call,
// including the optional Deleter and Lister capabilities. A wrapped backend
// without one of those capabilities reports errors.ErrNotImplemented.
package middleware
