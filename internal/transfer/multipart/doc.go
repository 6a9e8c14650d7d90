// Package multipart drives the part uploads of a multipart session.
// Chunks are numbered from 1 in the order they are read and uploaded through
// a bounded pipeline; the first failure stops the pipeline and aborts the
// session.
package multipart
