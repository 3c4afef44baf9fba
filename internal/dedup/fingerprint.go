package dedup

import (
	"regexp"
	"strings"

	"github.com/xfeed/xfeed/internal/models"
)

var fingerprintWhitespace = regexp.MustCompile(`\s+`)

// fingerprint returns the exact-pass identity key for a tweet: the
// (author, trimmed text) pair, case-sensitive. A retweet fingerprints to
// the identity its denormalised referenced-tweet fields carry, so a
// retweet and its original collide even though their own text/author
// differ.
func fingerprint(tw models.Tweet) string {
	author := tw.AuthorUsername
	text := tw.Text
	if tw.ReferenceType != nil && *tw.ReferenceType == models.ReferenceRetweeted {
		if tw.ReferencedTweetAuthor != "" {
			author = tw.ReferencedTweetAuthor
		}
		if tw.ReferencedTweetText != "" {
			text = tw.ReferencedTweetText
		}
	}
	return author + "\x00" + normaliseWhitespace(text)
}

func normaliseWhitespace(s string) string {
	return strings.TrimSpace(fingerprintWhitespace.ReplaceAllString(s, " "))
}

// exactGroups partitions tweets into fingerprint collision groups of size
// >= 2, preserving each bucket's tweets in input order.
func exactGroups(tweets []models.Tweet) [][]models.Tweet {
	buckets := make(map[string][]models.Tweet)
	order := make([]string, 0)

	for _, tw := range tweets {
		key := fingerprint(tw)
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], tw)
	}

	var groups [][]models.Tweet
	for _, key := range order {
		if len(buckets[key]) >= 2 {
			groups = append(groups, buckets[key])
		}
	}
	return groups
}
