package paginate

import (
	"encoding/base64"
	"strings"
)

// The upstream has been observed returning a continuation token that is
// the serialized (null,null) pair instead of omitting the token on the
// last page. Such a token is an end-of-stream sentinel, not a valid
// continuation, and it may arrive raw or base64-encoded.

// IsEndOfStreamToken reports whether the token means "no more data".
// An empty token always does; so does any encoding of the null pair.
func IsEndOfStreamToken(token string) bool {
	if token == "" {
		return true
	}
	if isNullPair(token) {
		return true
	}
	if decoded, err := base64.StdEncoding.DecodeString(token); err == nil && isNullPair(string(decoded)) {
		return true
	}
	if decoded, err := base64.URLEncoding.DecodeString(token); err == nil && isNullPair(string(decoded)) {
		return true
	}
	return false
}

func isNullPair(s string) bool {
	t := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	return t == "(null,null)" || t == "[null,null]"
}
