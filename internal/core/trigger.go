package core

import (
	"regexp"
	"strings"
)

const (
	searchMarkerOpen  = "[WEB_SEARCH:"
	searchMarkerClose = "]"
)

var searchTrigger = regexp.MustCompile(`\[WEB_SEARCH:([^\]]+)\]`)

// ParseSearchTrigger finds the first [WEB_SEARCH:<query>] marker in an assistant reply.
func ParseSearchTrigger(reply string) (string, bool) {
	m := searchTrigger.FindStringSubmatch(reply)
	if m == nil {
		return "", false
	}
	query := strings.TrimSpace(m[1])
	return query, query != ""
}
