package task

import "strings"

// Error classification for the retry policy. The denylist wins over the
// allowlist: a credential failure that mentions a timeout is still never
// retried.
var (
	nonRetryablePhrases = []string{
		"credential",
		"not found",
		"unsupported type",
		"manually triggered",
		"invalid task state",
	}

	retryablePhrases = []string{
		"timeout",
		"timed out",
		"network",
		"connection",
		"temporarily",
		"temporary",
		"rate limit",
		"busy",
		"overloaded",
	}
)

// IsRetryableError reports whether an error message describes a transient
// failure worth retrying. Matching is case-insensitive substring matching,
// mirroring how failures arrive from the remote API as plain text.
func IsRetryableError(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range nonRetryablePhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// credentialPhrases flag failures that require the user to re-authenticate.
// Recovery leaves such tasks FAILED instead of optimistically re-enabling
// them.
var credentialPhrases = []string{
	"credential",
	"token",
	"unauthorized",
	"authentication",
}

// IsCredentialFailure reports whether an error message describes a
// credential-class failure.
func IsCredentialFailure(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range credentialPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
