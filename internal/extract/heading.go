package extract

import (
	"strings"

	"github.com/unveil/unveil-bridge/internal/page"
	"github.com/unveil/unveil-bridge/internal/rules"
	"golang.org/x/net/html"
)

// HeadingAvatar finds headings whose text is itself a handle, signalled by a
// nearby avatar image. Reserved status words ("no assignees", workflow-state
// labels) are literal text unless an avatar is present, in which case the
// word is a real handle that happens to collide with a label.
type HeadingAvatar struct{}

func (HeadingAvatar) Name() string { return "heading-avatar" }

var headingTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func (HeadingAvatar) Locate(root *html.Node, r rules.Rules) []Candidate {
	var candidates []Candidate

	headings := page.FindAll(root, func(n *html.Node) bool {
		return headingTags[n.Data]
	})

	for _, h := range headings {
		text := strings.TrimSpace(page.Text(h))
		if text == "" {
			continue
		}

		avatar := nearbyAvatar(h, r)
		if avatar == nil {
			// without an avatar the heading text is just text; this also
			// keeps reserved status words literal
			continue
		}

		handle := trimMention(text)
		if !acceptable(handle, r) || page.IsProcessed(h, handle) {
			continue
		}

		heading, img := h, avatar
		candidates = append(candidates, Candidate{
			Handle:   handle,
			Boundary: heading,
			Apply: func(displayName string) {
				page.ReplaceHandle(heading, handle, displayName)
				page.SetAvatarAlt(img, displayName)
				page.MarkProcessed(heading, handle)
			},
		})
	}

	return candidates
}

// nearbyAvatar locates the avatar associated with a heading via fixed
// positional fallbacks: the element following the heading's leading-visual
// wrapper, then the nearest list-item ancestor, then a bounded
// upward-then-down search.
func nearbyAvatar(h *html.Node, r rules.Rules) *html.Node {
	isAvatar := func(n *html.Node) bool {
		return page.IsElement(n, "img") && r.IsAvatarClass(page.Attr(n, "class"))
	}

	if wrapper := page.FindFirst(h, func(n *html.Node) bool {
		return page.HasClass(n, "leading-visual")
	}); wrapper != nil {
		if img := page.FindFirst(wrapper, isAvatar); img != nil {
			return img
		}
		if sibling := page.NextElementSibling(wrapper); sibling != nil {
			if img := page.FindFirst(sibling, isAvatar); img != nil {
				return img
			}
		}
	}

	if li := page.Closest(h, func(n *html.Node) bool {
		return page.IsElement(n, "li")
	}); li != nil {
		if img := page.FindFirst(li, isAvatar); img != nil {
			return img
		}
	}

	// bounded upward-then-down search: a few ancestor levels at most, so an
	// avatar elsewhere on the page is never claimed
	ancestor := h.Parent
	for depth := 0; depth < 3 && ancestor != nil; depth++ {
		if img := page.FindFirst(ancestor, isAvatar); img != nil {
			return img
		}
		ancestor = ancestor.Parent
	}

	return nil
}
