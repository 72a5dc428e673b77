package handler

import "strconv"

// parseGid validates a path/query gid, grounded on the teacher's
// gallery.go gidPattern check but returning a typed int64 for the
// store's int64 gid columns.
func parseGid(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil && v > 0
}
