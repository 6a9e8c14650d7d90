// Package s3transfer moves large objects to and from S3-compatible object
// stores in fixed-size chunks.
//
// Uploads coalesce an arbitrarily chunked input into parts of a fixed size
// and send them as one multipart upload with bounded concurrency. Inputs that
// fit in a single part are stored with one PutObject call. A failed multipart
// upload is aborted exactly once, on a context detached from the caller.
//
// Downloads size the object with HeadObject, fetch it as concurrent byte
// ranges that are retried independently, and hand the ranges back in offset
// order as one stream.
//
// Example usage:
//
//	client, err := s3transfer.New(
//	    s3transfer.WithRegion("eu-central-1"),
//	    s3transfer.WithPartSize(16*1024*1024),
//	)
//	if err != nil {
//	    return err
//	}
//
//	result, err := client.UploadFile(ctx, "my-bucket", "backups/db.tar", "/var/backups/db.tar")
//	if err != nil {
//	    return err
//	}
//
//	rc, _, err := client.Open(ctx, "my-bucket", "backups/db.tar")
//	if err != nil {
//	    return err
//	}
//	defer rc.Close()
package s3transfer
