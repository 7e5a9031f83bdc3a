package aws

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// isNotFound reports whether err means the resource is already gone. Delete
// paths treat that as success: a timed-out delete may have taken effect
// remotely, and the retry has to converge instead of failing on every run.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if strings.Contains(code, "NotFound") || code == "NoSuchBucket" {
			return true
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "NotFound") ||
		strings.Contains(msg, "NoSuchBucket") ||
		strings.Contains(msg, "StatusCode: 404")
}
