package extract

import (
	"net/url"
	"strings"

	"github.com/unveil/unveil-bridge/internal/page"
	"github.com/unveil/unveil-bridge/internal/rules"
	"golang.org/x/net/html"
)

// ProfileLinks finds anchors that link to a profile: either the hover-preview
// URL names the handle, or the href is a bare single-segment profile path.
type ProfileLinks struct{}

func (ProfileLinks) Name() string { return "profile-links" }

func (ProfileLinks) Locate(root *html.Node, r rules.Rules) []Candidate {
	var candidates []Candidate

	anchors := page.FindAll(root, func(n *html.Node) bool {
		return page.IsElement(n, "a")
	})

	for _, a := range anchors {
		handle, ok := handleFromAnchor(a, r)
		if !ok || page.IsProcessed(a, handle) {
			continue
		}

		anchor := a
		candidates = append(candidates, Candidate{
			Handle:   handle,
			Boundary: anchor,
			Apply: func(displayName string) {
				if page.ReplaceHandle(anchor, handle, displayName) {
					page.MarkProcessed(anchor, handle)
				}
			},
		})
	}

	return candidates
}

// handleFromAnchor extracts a handle from the anchor's hovercard URL, falling
// back to the href. Denylisted, malformed and automated-account handles are
// rejected.
func handleFromAnchor(a *html.Node, r rules.Rules) (string, bool) {
	if hover := page.Attr(a, "data-hovercard-url"); strings.HasPrefix(hover, r.HovercardPathPrefix) {
		rest := strings.TrimPrefix(hover, r.HovercardPathPrefix)
		handle, _, _ := strings.Cut(rest, "/")
		if handle != "" && !r.IsDeniedSegment(handle) && acceptable(handle, r) {
			return handle, true
		}
	}

	href := page.Attr(a, "href")
	if href == "" {
		return "", false
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	// profile links are a single path segment; anything deeper is a page
	// within a project or account
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) != 1 || segments[0] == "" {
		return "", false
	}

	handle := segments[0]
	if r.IsDeniedSegment(handle) || !acceptable(handle, r) {
		return "", false
	}

	return handle, true
}
