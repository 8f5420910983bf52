package utils

import "github.com/gosimple/slug"

// Slugify transliterates s to ASCII, lowercases it and joins its words with
// single hyphens. It returns "" when s has nothing to keep.
func Slugify(s string) string {
	return slug.Make(s)
}
