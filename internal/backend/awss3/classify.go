package awss3

import (
	stderrors "errors"

	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
)

// classify tags err with the sentinel matching its S3 error code. Errors
// without a known code are returned unchanged and stay retryable.
func classify(err error) error {
	var apiErr smithy.APIError
	if !stderrors.As(err, &apiErr) {
		return err
	}
	return errors.FromServiceCode(apiErr.ErrorCode(), err)
}
