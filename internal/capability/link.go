package capability

import (
	"net/url"
	"strings"
)

// ActionURL is the public link an actor follows to act on a token.
func ActionURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/v1/actions?token=" + url.QueryEscape(token)
}
