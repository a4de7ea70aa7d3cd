package extract

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/unveil/unveil-bridge/internal/page"
	"github.com/unveil/unveil-bridge/internal/rules"
	"golang.org/x/net/html"
)

// payloadAttr carries the hover-preview panel's structured payload.
const payloadAttr = "data-hovercard-payload"

// summaryClass marks the summary row this locator appends to a panel.
const summaryClass = "unveil-summary"

// HoverCard finds floating preview panels carrying a structured payload. The
// handle comes from the payload's login field, with a fallback extraction
// from an embedded profile URL when the field is absent. A summary row with
// the resolved name is appended to the panel.
type HoverCard struct{}

func (HoverCard) Name() string { return "hover-card" }

func (HoverCard) Locate(root *html.Node, r rules.Rules) []Candidate {
	var candidates []Candidate

	panels := page.FindAll(root, func(n *html.Node) bool {
		return page.Attr(n, payloadAttr) != "" || page.HasClass(n, "hovercard")
	})

	for _, panel := range panels {
		handle, ok := handleFromPanel(panel, r)
		if !ok || page.IsProcessed(panel, handle) {
			continue
		}

		card, h := panel, handle
		candidates = append(candidates, Candidate{
			Handle:   h,
			Boundary: card,
			Apply: func(displayName string) {
				appendSummaryRow(card, displayName)
				page.MarkProcessed(card, h)
			},
		})
	}

	return candidates
}

// hovercardPayload is the subset of the panel payload we read. Some hosts
// nest the account under "user", others inline the login at the top level.
type hovercardPayload struct {
	Login string `json:"login"`
	User  struct {
		Login string `json:"login"`
	} `json:"user"`
}

// handleFromPanel extracts the handle from the panel's payload, falling back
// to an embedded profile link. A malformed payload is not an error: the
// panel is skipped and left unmarked so a later, complete render is
// re-attempted.
func handleFromPanel(panel *html.Node, r rules.Rules) (string, bool) {
	if raw := page.Attr(panel, payloadAttr); raw != "" {
		var payload hovercardPayload
		if err := json.Unmarshal([]byte(raw), &payload); err == nil {
			login := payload.Login
			if login == "" {
				login = payload.User.Login
			}
			if acceptable(login, r) {
				return login, true
			}
		}
	}

	// secondary extraction: the panel links to the profile it previews
	link := page.FindFirst(panel, func(n *html.Node) bool {
		return page.IsElement(n, "a") && page.Attr(n, "href") != ""
	})
	if link == nil {
		return "", false
	}

	u, err := url.Parse(page.Attr(link, "href"))
	if err != nil {
		return "", false
	}
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

// appendSummaryRow adds the resolved name beneath the panel's existing
// content.
func appendSummaryRow(panel *html.Node, displayName string) {
	row := &html.Node{
		Type: html.ElementNode,
		Data: "div",
		Attr: []html.Attribute{{Key: "class", Val: summaryClass}},
	}
	row.AppendChild(&html.Node{
		Type: html.TextNode,
		Data: displayName,
	})
	panel.AppendChild(row)
}
