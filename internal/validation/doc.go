// Package validation checks caller input before any backend request is made.
//
// Bucket names follow the S3 DNS naming rules, object keys are screened for
// traversal and control characters, and transfer tuning values are bounded by
// the multipart limits of S3.
package validation
