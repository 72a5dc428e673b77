// Package detect implements the Change Detector (spec.md §4.D): a pure
// comparison of a list page's cheap signal against a stored detail
// record, deciding whether a detail fetch is warranted. Grounded in
// shape on original_source/scraper/loop.py's should_refresh_from_list
// and bucket_rating, adapted from the Python original's tag-*count*
// mismatch check to the spec's stricter tag-*set*-subset rule, and on
// the teacher's pkg/utils/normalize.go for tag lowercasing.
package detect

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Existing is the stored comparison state for one gallery.
type Existing struct {
	Rating     *float64
	DetailTags map[string][]string // namespace -> values, as stored
}

// ListItem is the cheap list-page signal for one gallery.
type ListItem struct {
	RatingEst    *float64
	VisibleTags  map[string]struct{} // flat "namespace:value" set
}

// bucketRating rounds to the nearest 0.5, matching the site's list
// sprite encoding (spec.md §4.D, original_source's bucket_rating).
func bucketRating(v float64) float64 {
	return math.Round(v*2) / 2
}

// flattenLower lowercases every "namespace:value" pair in a detail tag
// map into a flat set, mirroring pkg/utils/normalize.go's NormalizeTag
// lowercasing (namespace expansion is not needed here since both sides
// already use canonical namespace names from the parser).
func flattenLower(tags map[string][]string) map[string]struct{} {
	out := make(map[string]struct{})
	for ns, values := range tags {
		ns = strings.ToLower(ns)
		for _, v := range values {
			out[ns+":"+strings.ToLower(v)] = struct{}{}
		}
	}
	return out
}

// Decide returns whether a detail fetch is warranted and a
// human-readable reason string for logs/tests. An absent existing
// record (nil) is an unconditional refresh-as-new.
func Decide(existing *Existing, item ListItem, ratingThreshold float64) (refresh bool, reason string) {
	if existing == nil {
		return true, "new"
	}

	storedLower := flattenLower(existing.DetailTags)

	var missing []string
	for tag := range item.VisibleTags {
		if _, ok := storedLower[strings.ToLower(tag)]; !ok {
			missing = append(missing, tag)
		}
	}
	sort.Strings(missing)

	tagRefresh := len(missing) > 0

	var existingBucket, listBucket *float64
	if existing.Rating != nil {
		b := bucketRating(*existing.Rating)
		existingBucket = &b
	}
	if item.RatingEst != nil {
		b := bucketRating(*item.RatingEst)
		listBucket = &b
	}

	ratingRefresh := false
	ratingNote := "rating=match"
	switch {
	case existingBucket == nil && listBucket != nil:
		ratingRefresh = true
		ratingNote = fmt.Sprintf("rating=null!=%.1f", *listBucket)
	case existingBucket != nil && listBucket != nil:
		diff := math.Abs(*existingBucket - *listBucket)
		if diff >= ratingThreshold {
			ratingRefresh = true
			ratingNote = fmt.Sprintf("rating=%.1f!=%.1f", *existingBucket, *listBucket)
		}
	}

	refresh = tagRefresh || ratingRefresh

	total := len(item.VisibleTags)
	present := total - len(missing)
	tagNote := fmt.Sprintf("tag=subset(%d/%d)", present, total)
	if len(missing) > 0 {
		tagNote += fmt.Sprintf(" missing=%s", strings.Join(missing, ","))
	}

	reason = tagNote + " " + ratingNote
	return refresh, reason
}
