package fetch

import "strings"

// classify inspects a response body in the order spec.md §4.B
// specifies: access-denial markers, then login-required markers, then
// a temporary-ban duration string. Markers are grounded on
// original_source/scraper/loop.py's validate_access. Returns nil if the
// body is clean and should be handed to a parser.
func classify(body string) error {
	if strings.Contains(body, "panda.png") || strings.Contains(body, "Sad Panda") {
		return ErrAccessDenied
	}
	if strings.Contains(body, "requires you to log on") || strings.Contains(body, "must be logged in") {
		return ErrLoginRequired
	}
	if strings.Contains(body, "temporarily banned") {
		return ErrBanned
	}
	return nil
}
