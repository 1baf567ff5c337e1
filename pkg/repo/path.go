package repo

import "strings"

// Normalize canonicalizes a logical content path.
//
// Leading, trailing and duplicate slashes are stripped, so different
// spellings of the same path collapse to one canonical form:
//
//	"//folder//"        → "folder"
//	"/"                 → ""
//	"//file//test.txt"  → "file/test.txt"
//
// Normalization is total (never fails) and idempotent. The empty result
// denotes the resource root.
func Normalize(raw string) string {
	segments := strings.Split(raw, "/")

	kept := segments[:0]
	for _, segment := range segments {
		if segment != "" {
			kept = append(kept, segment)
		}
	}

	return strings.Join(kept, "/")
}

// Depth returns the hierarchy depth of a normalized path: the number of
// non-empty segments, with a minimum of 1 so that the resource root itself
// counts as one level.
func Depth(normalized string) int {
	if normalized == "" {
		return 1
	}
	return strings.Count(normalized, "/") + 1
}
