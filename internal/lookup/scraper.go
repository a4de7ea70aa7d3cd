package lookup

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// maxProfileBytes bounds the profile page read. Anything larger than this is
// not a profile page we care to parse.
const maxProfileBytes = 2 << 20 // 2 MB

// NewScraper returns a Func that fetches the origin's profile page for a
// handle and extracts the display name from its markup. The name is taken
// from the itemprop="name" element, falling back to the vcard-fullname class.
func NewScraper(client *http.Client) Func {
	if client == nil {
		client = http.DefaultClient
	}

	return func(ctx context.Context, origin, handle string) (string, error) {
		profileURL := url.URL{
			Scheme: "https",
			Host:   origin,
			Path:   "/" + handle,
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL.String(), nil)
		if err != nil {
			return "", fmt.Errorf("building profile request: %w", err)
		}

		res, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("fetching profile for %q: %w", handle, err)
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			return "", fmt.Errorf("profile fetch for %q returned status %d", handle, res.StatusCode)
		}

		doc, err := html.Parse(http.MaxBytesReader(nil, res.Body, maxProfileBytes))
		if err != nil {
			return "", fmt.Errorf("parsing profile page for %q: %w", handle, err)
		}

		name := extractDisplayName(doc)
		if name == "" {
			return "", fmt.Errorf("no display name found on profile page for %q", handle)
		}

		return name, nil
	}
}

// extractDisplayName walks the parsed profile page for the display name
// element. Depth-first, first match wins.
func extractDisplayName(doc *html.Node) string {
	var find func(n *html.Node, match func(*html.Node) bool) *html.Node
	find = func(n *html.Node, match func(*html.Node) bool) *html.Node {
		if n.Type == html.ElementNode && match(n) {
			return n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if found := find(c, match); found != nil {
				return found
			}
		}
		return nil
	}

	if n := find(doc, func(n *html.Node) bool {
		return attrValue(n, "itemprop") == "name"
	}); n != nil {
		return strings.TrimSpace(nodeText(n))
	}

	if n := find(doc, func(n *html.Node) bool {
		return hasClassToken(attrValue(n, "class"), "vcard-fullname")
	}); n != nil {
		return strings.TrimSpace(nodeText(n))
	}

	return ""
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClassToken(class, token string) bool {
	for _, f := range strings.Fields(class) {
		if f == token {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
