// Package transfer holds the chunked transfer engine.
//
// Uploads flow through chunk (coalescing input buffers into parts), session
// (the multipart state machine) and multipart (bounded part submission).
// Downloads flow through ranges (byte-range planning), ranged (bounded,
// retrying fetch-ahead) and assemble (ordered reassembly). Both directions
// share the bounded pipeline of manager and the policy of retry.
package transfer
