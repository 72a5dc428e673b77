package fetch

// CategoryBits is the fixed 10-label site taxonomy and its bit value,
// grounded on the teacher's pkg/utils/normalize.go CategoryMap (same
// bit assignment, same 10 labels).
var CategoryBits = map[string]int{
	"Misc":       1,
	"Doujinshi":  2,
	"Manga":      4,
	"Artist CG":  8,
	"Game CG":    16,
	"Image Set":  32,
	"Cosplay":    64,
	"Asian Porn": 128,
	"Non-H":      256,
	"Western":    512,
}

const allCatsMask = (1 << 10) - 1

// CategoryMask computes the exclusion bitmask to include exactly the
// given category set (spec.md §4.B: mask = (2^10-1) - Σbit(c)).
func CategoryMask(include []string) int {
	sum := 0
	for _, c := range include {
		sum += CategoryBits[c]
	}
	return allCatsMask - sum
}

// ValidCategory reports whether name is one of the 10 site labels.
func ValidCategory(name string) bool {
	_, ok := CategoryBits[name]
	return ok
}
