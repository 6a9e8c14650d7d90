// Package operations contains the upload and download operations of the
// client. Each operation is isolated into its own subpackage and works on
// any s3types.Backend.
package operations
