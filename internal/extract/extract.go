// Package extract finds candidate handles in a parsed subtree. Each locator
// implements one structural heuristic; locators are independent, order-free,
// and never touch storage. A locator yields candidates whose Apply closure
// performs the rewrite and marks the processed boundary once the handle's
// display name is known.
package extract

import (
	"regexp"
	"strings"

	"github.com/unveil/unveil-bridge/internal/rules"
	"golang.org/x/net/html"
)

// Candidate is one handle found in the subtree, with the locations that
// await its display name.
type Candidate struct {
	// Handle is the raw account handle to resolve.
	Handle string

	// Boundary is the element whose processed marker guards this candidate.
	Boundary *html.Node

	// Apply rewrites the candidate's locations with the resolved display
	// name and marks the boundary processed.
	Apply func(displayName string)
}

// Locator scans a subtree for one structural pattern.
type Locator interface {
	Name() string
	Locate(root *html.Node, r rules.Rules) []Candidate
}

// All returns the full locator set.
func All() []Locator {
	return []Locator{
		ProfileLinks{},
		HeadingAvatar{},
		GridCell{},
		GroupHeader{},
		HoverCard{},
	}
}

// handlePattern enforces handle syntax: alphanumeric segments separated by
// single hyphens, so no leading, trailing or doubled hyphen.
var handlePattern = regexp.MustCompile(`^[A-Za-z0-9]+(?:-[A-Za-z0-9]+)*$`)

// ValidHandle reports whether s is syntactically a handle: 1–39 characters,
// alphanumeric segments separated by single hyphens.
func ValidHandle(s string) bool {
	if len(s) < 1 || len(s) > 39 {
		return false
	}
	return handlePattern.MatchString(s)
}

// acceptable combines the syntactic check with the automated-account filter.
func acceptable(handle string, r rules.Rules) bool {
	return ValidHandle(handle) && !r.IsBot(handle)
}

// trimMention strips a leading "@" from a mention-form handle.
func trimMention(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}
