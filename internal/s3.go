package internal

import (
	"fmt"
	"strings"
)

// ParseS3URI parses S3 URIs in format s3://bucket/key.
//
// Bucket names are not validated beyond being non-empty.
func ParseS3URI(text string) (bucket, key string, err error) {
	if !strings.HasPrefix(text, "s3://") {
		return "", "", fmt.Errorf("text does not start with s3://")
	}

	bucket, key, _ = strings.Cut(strings.TrimPrefix(text, "s3://"), "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket name")
	}
	if key == "" {
		return "", "", fmt.Errorf("missing object key")
	}
	return
}

// IsS3URI reports whether text looks like an S3 URI.
func IsS3URI(text string) bool {
	return strings.HasPrefix(text, "s3://")
}
