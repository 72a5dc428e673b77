package fetch

import "errors"

// Sentinel errors for response classification (spec.md §4.B, §7),
// checked with errors.Is at the runner layer the way
// jorgemgr94-go-learning's db package wraps *pgconn.PgError — never a
// raw string match outside the ban-duration parser itself, which
// necessarily operates on response body text.
var (
	ErrBanned        = errors.New("fetch: temporarily banned")
	ErrAccessDenied  = errors.New("fetch: access denied")
	ErrLoginRequired = errors.New("fetch: login required")
	ErrTransport     = errors.New("fetch: transport error")
)
