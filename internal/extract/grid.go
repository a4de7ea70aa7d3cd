package extract

import (
	"strings"

	"github.com/unveil/unveil-bridge/internal/page"
	"github.com/unveil/unveil-bridge/internal/rules"
	"golang.org/x/net/html"
)

// GridCell finds grid cells pairing one or more avatar images with a text
// span naming the handles in natural-language list form ("A", "A and B",
// "A, B, and C"). Each handle resolves independently: only its run of text
// and its own avatar's alt are rewritten, so unresolved neighbours stay
// literal.
type GridCell struct{}

func (GridCell) Name() string { return "grid-cell" }

func (GridCell) Locate(root *html.Node, r rules.Rules) []Candidate {
	var candidates []Candidate

	cells := page.FindAll(root, func(n *html.Node) bool {
		return page.IsElement(n, "td") || page.Attr(n, "role") == "gridcell"
	})

	for _, cell := range cells {
		avatars := page.FindAll(cell, func(n *html.Node) bool {
			return page.IsElement(n, "img") && r.IsAvatarClass(page.Attr(n, "class"))
		})
		if len(avatars) == 0 {
			continue
		}

		span, handles := handleListSpan(cell, r)
		if span == nil {
			continue
		}

		for _, handle := range handles {
			if page.IsProcessed(cell, handle) {
				continue
			}

			boundary, textSpan, h := cell, span, handle
			avatar := avatarFor(avatars, handle)
			if avatar == nil && len(avatars) == 1 && len(handles) == 1 {
				// a lone avatar in a single-handle cell may carry no alt
				avatar = avatars[0]
			}
			candidates = append(candidates, Candidate{
				Handle:   h,
				Boundary: boundary,
				Apply: func(displayName string) {
					page.ReplaceHandle(textSpan, h, displayName)
					if avatar != nil {
						page.SetAvatarAlt(avatar, displayName)
					}
					page.MarkProcessed(boundary, h)
				},
			})
		}
	}

	return candidates
}

// handleListSpan finds the cell's span enumerating handles, returning it
// with the handles still awaiting resolution. On a virgin cell every name in
// the list must be a syntactically valid handle, which keeps prose spans out.
// Once some handles have been rewritten their display names no longer parse
// as handles, so a marked cell tolerates as many non-handle names as it has
// applied handles; the remaining literal handles stay locatable.
func handleListSpan(cell *html.Node, r rules.Rules) (*html.Node, []string) {
	applied := len(strings.Fields(page.Attr(cell, page.ProcessedAttr)))

	spans := page.FindAll(cell, func(n *html.Node) bool {
		return page.IsElement(n, "span")
	})

	for _, span := range spans {
		names := parseNameList(page.Text(span))
		if len(names) == 0 {
			continue
		}

		var handles []string
		rejected := 0
		for _, name := range names {
			// "Unassigned" and friends read like handles but are status text
			if acceptable(name, r) && !r.IsReserved(name) {
				handles = append(handles, name)
			} else {
				rejected++
			}
		}

		if len(handles) == 0 || rejected > applied {
			continue
		}
		return span, handles
	}

	return nil, nil
}

// parseNameList splits natural-language list text: "A", "A and B",
// "A, B, and C".
func parseNameList(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	text = strings.ReplaceAll(text, " and ", ",")

	var names []string
	for _, part := range strings.Split(text, ",") {
		if name := trimMention(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// avatarFor matches an avatar to a handle by its alt text, with or without
// the "@" prefix.
func avatarFor(avatars []*html.Node, handle string) *html.Node {
	for _, img := range avatars {
		alt := trimMention(page.Attr(img, "alt"))
		if strings.EqualFold(alt, handle) {
			return img
		}
	}
	return nil
}
