// Package upload drives an upload from a buffer source to a backend.
//
// Inputs that fit within one aggregated chunk, including empty inputs, are
// stored with a single PutObject call. Larger inputs go through a multipart
// session with bounded concurrency and an abort on any failure.
package upload
