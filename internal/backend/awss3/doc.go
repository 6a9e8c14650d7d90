// Package awss3 implements the transfer backend on top of the AWS SDK v2 S3 client.
//
// All calls go through the s3api.S3API seam so the backend can be exercised
// against function-field mocks. Service errors are classified by their smithy
// error code into the sentinel errors of the errors package.
package awss3
