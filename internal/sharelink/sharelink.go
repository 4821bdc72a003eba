// Package sharelink builds the public URL of a task page.
package sharelink

import (
	"net/url"
	"strings"
)

// TaskPath is the route prefix public task pages are served under.
const TaskPath = "/task/"

// Build returns the absolute URL of a task page. Trailing slashes on
// baseURL are ignored and the id is escaped as one path segment.
func Build(baseURL, taskID string) string {
	return strings.TrimRight(baseURL, "/") + TaskPath + url.PathEscape(taskID)
}
