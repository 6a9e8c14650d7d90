package upload

import (
	"mime"
	"path"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

// DetectContentType sniffs head with mimetype, falling back to the
// extension of name and then to application/octet-stream.
func DetectContentType(head []byte, name string) string {
	if len(head) > 0 {
		if mt := mimetype.Detect(head); mt != nil && !mt.Is(defaultContentType) {
			return mt.String()
		}
	}
	if ext := path.Ext(name); ext != "" {
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	return defaultContentType
}
