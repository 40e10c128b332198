package forum

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateForumURL checks that a URL points at a Moodle forum over HTTPS.
// Publishing navigates a real browser to this address, so a typo here
// would fill a form on whatever page happens to load.
func ValidateForumURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid forum URL: %w", err)
	}

	if u.Scheme != "https" {
		return fmt.Errorf("forum URL must use https, got %q", u.Scheme)
	}

	if !strings.Contains(strings.ToLower(u.Host), "moodle") {
		return fmt.Errorf("forum URL host %q does not look like a Moodle site", u.Host)
	}

	path := strings.ToLower(u.Path)
	if !strings.Contains(path, "/mod/forum/") && !strings.Contains(path, "/forum/") {
		return fmt.Errorf("forum URL path %q is not a forum page", u.Path)
	}

	return nil
}
