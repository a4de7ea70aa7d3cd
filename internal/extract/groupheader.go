package extract

import (
	"github.com/unveil/unveil-bridge/internal/page"
	"github.com/unveil/unveil-bridge/internal/rules"
	"golang.org/x/net/html"
)

// GroupHeader finds board-style group headers pairing an avatar-count badge,
// an avatar image, a label span and tooltip text that repeats the handle.
// All four locations rewrite together once the handle resolves.
type GroupHeader struct{}

func (GroupHeader) Name() string { return "group-header" }

func (GroupHeader) Locate(root *html.Node, r rules.Rules) []Candidate {
	var candidates []Candidate

	headers := page.FindAll(root, func(n *html.Node) bool {
		return page.HasClass(n, "group-header")
	})

	for _, header := range headers {
		avatar := page.FindFirst(header, func(n *html.Node) bool {
			return page.IsElement(n, "img") && r.IsAvatarClass(page.Attr(n, "class"))
		})
		if avatar == nil {
			continue
		}

		label := labelSpan(header, r)
		if label == nil {
			continue
		}

		handle := trimMention(page.Text(label))
		if page.IsProcessed(header, handle) {
			continue
		}

		badge := page.FindFirst(header, func(n *html.Node) bool {
			return page.HasClass(n, "Counter") || page.HasClass(n, "counter")
		})
		tooltip := page.FindFirst(header, func(n *html.Node) bool {
			return page.HasClass(n, "tooltipped") && page.Attr(n, "aria-label") != ""
		})

		boundary, img, labelNode, h := header, avatar, label, handle
		badgeNode, tooltipNode := badge, tooltip
		candidates = append(candidates, Candidate{
			Handle:   h,
			Boundary: boundary,
			Apply: func(displayName string) {
				page.ReplaceHandle(labelNode, h, displayName)
				page.SetAvatarAlt(img, displayName)
				rewriteAriaLabel(tooltipNode, h, displayName)
				rewriteAriaLabel(badgeNode, h, displayName)
				page.MarkProcessed(boundary, h)
			},
		})
	}

	return candidates
}

// labelSpan finds the span whose text is the group's handle.
func labelSpan(header *html.Node, r rules.Rules) *html.Node {
	spans := page.FindAll(header, func(n *html.Node) bool {
		return page.IsElement(n, "span") &&
			!page.HasClass(n, "Counter") && !page.HasClass(n, "counter") &&
			!page.HasClass(n, "tooltipped")
	})

	for _, span := range spans {
		if acceptable(trimMention(page.Text(span)), r) {
			return span
		}
	}
	return nil
}

// rewriteAriaLabel substitutes handle tokens inside an element's aria-label.
func rewriteAriaLabel(n *html.Node, handle, displayName string) {
	if n == nil {
		return
	}
	label := page.Attr(n, "aria-label")
	if label == "" {
		return
	}
	if replaced, ok := page.ReplaceHandleText(label, handle, displayName); ok {
		page.SetAttr(n, "aria-label", replaced)
	}
}
