package images

import (
	"fmt"
	"strings"

	"github.com/shelfmark/shelfmark/models"
)

// Curated Unsplash photos per media type. The title hash selects one so a
// given title always maps to the same base image.
var placeholderPhotos = map[models.MediaType][]string{
	models.MediaTypeMovie: {
		"photo-1478720568477-152d9b164e26",
		"photo-1485846234645-a62644f84728",
		"photo-1440404653325-ab127d49abc1",
		"photo-1536440136628-849c177e76a1",
		"photo-1517604931442-7e0c8ed2963c",
	},
	models.MediaTypeTV: {
		"photo-1522869635100-9f4c5e86aa37",
		"photo-1593359677879-a4bb92f829d1",
		"photo-1593784991095-a205069470b6",
		"photo-1593784991086-c8c04647eb22",
		"photo-1611162617474-5b21e879e113",
	},
	models.MediaTypeBook: {
		"photo-1495446815901-a7297e633e8d",
		"photo-1544947950-fa07a98d237f",
		"photo-1512820790803-83ca734da794",
		"photo-1507842217343-583bb7270b66",
		"photo-1516979187457-637abb4f9353",
	},
}

// titleSeed is a non-cryptographic hash: the sum of the title's character
// codes. Deterministic so repeated lookups agree.
func titleSeed(title string) int {
	seed := 0
	for _, r := range title {
		seed += int(r)
	}
	return seed
}

// PlaceholderURL derives a stable placeholder cover from a hash of the
// title mixed with the media type. This is a stand-in for a real image
// generation service. The query parameters also mark the URL as a
// placeholder: URLs containing '?' are never registered as shared images.
func PlaceholderURL(title string, mediaType models.MediaType) string {
	photos, ok := placeholderPhotos[mediaType]
	if !ok {
		photos = placeholderPhotos[models.MediaTypeBook]
	}

	seed := titleSeed(title)
	photo := photos[seed%len(photos)]
	hue := seed % 360
	sat := seed%50 + 30

	return fmt.Sprintf("https://images.unsplash.com/%s?auto=format&fit=crop&w=800&q=80&sat=%d&hue=%d", photo, sat, hue)
}

// IsPlaceholder reports whether a URL came from a generator rather than a
// user-supplied cover. Generated URLs carry query parameters.
func IsPlaceholder(url string) bool {
	return strings.Contains(url, "?")
}
