package model

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// NormalizeTags trims, drops empties, dedupes and sorts tags.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// UnionTags merges tag sets.
func UnionTags(sets ...[]string) []string {
	var all []string
	for _, s := range sets {
		all = append(all, s...)
	}
	return NormalizeTags(all)
}

// NormalizeContent is the key used to group duplicate content.
func NormalizeContent(content string) string {
	return strings.ToLower(strings.TrimSpace(content))
}

// TruncateContent cuts content to at most MaxContentRunes runes.
func TruncateContent(content string) string {
	return TruncateRunes(content, MaxContentRunes)
}

// TruncateRunes cuts s to at most n runes without splitting a character.
func TruncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for idx := range s {
		if i == n {
			return s[:idx]
		}
		i++
	}
	return s
}
