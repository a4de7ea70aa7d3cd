package page

import (
	"strings"

	"golang.org/x/net/html"
)

// ProcessedAttr carries the idempotency marker: a space-separated list of
// handles already rewritten under the element. A marked boundary is skipped
// by every later scan for that handle, including full-document rescans
// triggered by unrelated mutations.
const ProcessedAttr = "data-unveil-processed"

// IsProcessed reports whether the element has already been rewritten for the
// handle.
func IsProcessed(n *html.Node, handle string) bool {
	for _, h := range strings.Fields(Attr(n, ProcessedAttr)) {
		if strings.EqualFold(h, handle) {
			return true
		}
	}
	return false
}

// MarkProcessed records that the element has been rewritten for the handle.
func MarkProcessed(n *html.Node, handle string) {
	if IsProcessed(n, handle) {
		return
	}

	existing := Attr(n, ProcessedAttr)
	if existing == "" {
		SetAttr(n, ProcessedAttr, handle)
		return
	}
	SetAttr(n, ProcessedAttr, existing+" "+handle)
}
