// Package internal contains private implementation details of s3transfer.
// These packages are not intended for external use and may change without notice.
//
// The internal packages are organized as follows:
//   - operations: upload and download orchestration behind the client
//   - transfer: the chunked transfer engine (ranges, chunk, multipart, ranged, session, assemble)
//   - backend: AWS SDK and MinIO backends plus rate limiting and instrumentation decorators
//   - validation: input validation logic
//   - pool: buffer reuse for parts and reads
package internal
