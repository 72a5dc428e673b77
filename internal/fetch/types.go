package fetch

import "time"

// ListItem is one row of a list page (spec.md §4.B's GalleryListItem),
// widened from the teacher's internal/crawler/gallery.go regex output
// and from original_source/scraper/parser.py's visible_tag_count (an
// int) to carry the actual visible tag strings, since the Change
// Detector needs the set for its subset comparison, not just a count.
type ListItem struct {
	Gid         int64
	Token       string
	Title       string
	RatingSig   string
	RatingEst   *float64
	VisibleTags map[string]struct{}
}

// DetailRecord is a parsed gallery detail page.
type DetailRecord struct {
	Gid          int64
	Token        string
	Category     string
	Title        string
	TitleJpn     string
	Uploader     string
	PostedAt     time.Time
	Language     string
	Pages        int
	Rating       *float64
	FavCount     int
	CommentCount int
	Thumb        string
	Tags         map[string][]string
}
