// Parsing is explicitly out of scope per spec.md §1 ("treated as
// black-box pure functions with specified outputs"); these two
// functions exist to satisfy the Fetcher's contract and are adapted
// from the teacher's internal/crawler/gallery.go regex-based GetPages
// extraction, widened to the richer ListItem{RatingSig, RatingEst,
// VisibleTags} shape spec.md §4.B names, and from
// original_source/scraper/parser.py's rating/tag-extraction heuristics
// (_extract_rating_signal, _extract_visible_tags).
package fetch

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	listItemPattern    = regexp.MustCompile(`gid=(\d+)&amp;t=([0-9a-f]{10})`)
	foundCountPattern  = regexp.MustCompile(`Found about ([\d,]+) results`)
	nextCursorPattern  = regexp.MustCompile(`next=(\d+)`)
	ratingTitlePattern = regexp.MustCompile(`title="([\d.]+) stars"`)
	tagHrefPattern     = regexp.MustCompile(`f_search=([a-z0-9_]+)%3A([^"&]+)`)
)

// parseGalleryList extracts list items, the next cursor, and an
// optional total count from one list page's HTML, mirroring the
// teacher's GetPages but returning the widened ListItem shape. Title and
// RatingSig are not filled in.
func parseGalleryList(html string) ([]ListItem, *int64, *int64, error) {
	var items []ListItem
	seen := make(map[int64]bool)

	matches := listItemPattern.FindAllStringSubmatch(html, -1)
	for _, m := range matches {
		gid, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || seen[gid] {
			continue
		}
		seen[gid] = true
		items = append(items, ListItem{
			Gid:         gid,
			Token:       m[2],
			VisibleTags: extractVisibleTags(html),
			RatingEst:   extractRatingSignal(html),
		})
	}

	var nextCursor *int64
	if m := nextCursorPattern.FindStringSubmatch(html); len(m) == 2 {
		if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			nextCursor = &v
		}
	}

	var totalCount *int64
	if m := foundCountPattern.FindStringSubmatch(html); len(m) == 2 {
		clean := strings.ReplaceAll(m[1], ",", "")
		if v, err := strconv.ParseInt(clean, 10, 64); err == nil {
			totalCount = &v
		}
	}

	return items, nextCursor, totalCount, nil
}

// extractRatingSignal mirrors original_source/scraper/parser.py's
// _extract_rating_signal: the bucketed rating is encoded in a sprite
// title attribute on the list card.
func extractRatingSignal(html string) *float64 {
	m := ratingTitlePattern.FindStringSubmatch(html)
	if len(m) != 2 {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

// extractVisibleTags mirrors original_source/scraper/parser.py's
// _extract_visible_tags: tags visible directly on the list card link
// to a "namespace:value" search query.
func extractVisibleTags(html string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, m := range tagHrefPattern.FindAllStringSubmatch(html, -1) {
		ns := strings.ToLower(m[1])
		val := strings.ToLower(strings.ReplaceAll(m[2], "+", " "))
		out[ns+":"+val] = struct{}{}
	}
	return out
}

// parseGalleryDetail extracts the full gallery record from a detail
// page, mirroring the teacher's metadata mapping in importer.go but
// sourced from HTML rather than the teacher's JSON gdata API, per
// spec.md §1's "list and detail pages" contract (not a JSON shortcut).
func parseGalleryDetail(html string, gid int64, token string) (*DetailRecord, error) {
	rec := &DetailRecord{
		Gid:      gid,
		Token:    token,
		Title:    extractField(html, `<h1 id="gn">([^<]*)</h1>`),
		TitleJpn: extractField(html, `<h1 id="gj">([^<]*)</h1>`),
		Category: extractField(html, `<div id="gdc"><[^>]*>([^<]*)<`),
		Uploader: extractField(html, `<div id="gdn">([^<]*)</div>`),
		Language: extractField(html, `(\w+)\s*<\/span></div></div>\s*<div id="gdt2">Language`),
		Thumb:    extractField(html, `background-image:url\(([^)]+)\)`),
		Tags:     extractDetailTags(html),
	}

	if m := regexp.MustCompile(`posted">([^<]+)<`).FindStringSubmatch(html); len(m) == 2 {
		if t, err := time.Parse("2006-01-02 15:04", m[1]); err == nil {
			rec.PostedAt = t
		}
	}
	if m := regexp.MustCompile(`(\d+)\s*pages`).FindStringSubmatch(html); len(m) == 2 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			rec.Pages = v
		}
	}
	if m := regexp.MustCompile(`id="rating_label">Average:\s*([\d.]+)`).FindStringSubmatch(html); len(m) == 2 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			rec.Rating = &v
		}
	}
	if m := regexp.MustCompile(`id="favcount">(\d+)`).FindStringSubmatch(html); len(m) == 2 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			rec.FavCount = v
		}
	}
	rec.CommentCount = strings.Count(html, `class="c1"`)

	return rec, nil
}

func extractField(html, pattern string) string {
	m := regexp.MustCompile(pattern).FindStringSubmatch(html)
	if len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractDetailTags builds the namespace -> ordered unique values map
// spec.md §3 requires, from the detail page's tag list markup.
func extractDetailTags(html string) map[string][]string {
	out := make(map[string][]string)
	seen := make(map[string]bool)
	for _, m := range tagHrefPattern.FindAllStringSubmatch(html, -1) {
		ns := strings.ToLower(m[1])
		val := strings.ToLower(strings.ReplaceAll(m[2], "+", " "))
		key := ns + ":" + val
		if seen[key] {
			continue
		}
		seen[key] = true
		out[ns] = append(out[ns], val)
	}
	return out
}
