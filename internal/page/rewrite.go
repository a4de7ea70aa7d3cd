package page

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// tokenPattern matches the handle as a whole token, optionally prefixed by
// "@", case-insensitively. Handles never start or end with a hyphen, so \b
// is a sound token boundary.
func tokenPattern(handle string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)@?\b` + regexp.QuoteMeta(handle) + `\b`)
}

// ReplaceHandleText substitutes the display name for every whole-token
// occurrence of the handle in text, preserving an "@" prefix where present.
// Token occurrences lying inside an existing occurrence of the display name
// are left alone: that is what makes a second pass over already-rewritten
// text a no-op even when the display name overlaps the raw handle.
func ReplaceHandleText(text, handle, displayName string) (string, bool) {
	re := tokenPattern(handle)

	matches := re.FindAllStringIndex(text, -1)
	if matches == nil {
		return text, false
	}

	covered := coveredRanges(text, displayName)

	var sb strings.Builder
	last := 0
	changed := false

	for _, m := range matches {
		start, end := m[0], m[1]
		if isCovered(covered, start, end) {
			continue
		}

		sb.WriteString(text[last:start])
		if text[start] == '@' {
			sb.WriteByte('@')
		}
		sb.WriteString(displayName)
		last = end
		changed = true
	}

	if !changed {
		return text, false
	}

	sb.WriteString(text[last:])
	return sb.String(), true
}

// coveredRanges finds every occurrence of the display name in text.
func coveredRanges(text, displayName string) [][2]int {
	if displayName == "" {
		return nil
	}

	var ranges [][2]int
	for from := 0; ; {
		i := strings.Index(text[from:], displayName)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(displayName)
		ranges = append(ranges, [2]int{start, end})
		from = end
	}
	return ranges
}

func isCovered(ranges [][2]int, start, end int) bool {
	for _, r := range ranges {
		if r[0] <= start && end <= r[1] {
			return true
		}
	}
	return false
}

// ReplaceHandle rewrites every text node under el, substituting the display
// name for whole-token occurrences of the handle. Returns whether any node
// changed.
func ReplaceHandle(el *html.Node, handle, displayName string) bool {
	changed := false

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if replaced, ok := ReplaceHandleText(n.Data, handle, displayName); ok {
				n.Data = replaced
				changed = true
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(el)

	return changed
}

// SetAvatarAlt points an avatar image's alt text at the resolved name. This
// is unconditional: alt text never carries partial rewrites, so there is
// nothing to preserve.
func SetAvatarAlt(img *html.Node, displayName string) {
	SetAttr(img, "alt", "@"+displayName)
}
