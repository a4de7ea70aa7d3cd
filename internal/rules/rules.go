// Package rules holds the per-site heuristics the extractors depend on:
// which link path segments can never be profiles, which words are status
// labels rather than handles, how automated accounts are suffixed, and which
// markup classes denote avatars. Defaults cover the common hosted platform;
// a YAML file can override any list for unusual installations.
package rules

import (
	"fmt"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

type Rules struct {
	// DeniedPathSegments are first path segments that never denote a profile.
	DeniedPathSegments []string `yaml:"deniedPathSegments"`

	// ReservedWords are status labels that read like handles but are literal
	// text, unless an avatar is present alongside them.
	ReservedWords []string `yaml:"reservedWords"`

	// BotSuffixes mark automated accounts whose handles are left untouched.
	BotSuffixes []string `yaml:"botSuffixes"`

	// AvatarClasses are class tokens identifying avatar images.
	AvatarClasses []string `yaml:"avatarClasses"`

	// HovercardPathPrefix is the URL prefix of hover-preview payload URLs,
	// with the handle as the following path segment.
	HovercardPathPrefix string `yaml:"hovercardPathPrefix"`
}

// Default returns the built-in rule set.
func Default() Rules {
	return Rules{
		DeniedPathSegments: []string{
			"about", "apps", "collections", "contact", "customer-stories",
			"dashboard", "enterprise", "events", "explore", "features",
			"issues", "join", "login", "logout", "marketplace", "new",
			"notifications", "orgs", "organizations", "pricing", "pulls",
			"search", "security", "settings", "site", "sponsors", "team",
			"topics", "trending",
		},
		ReservedWords: []string{
			"no assignees", "no assignee", "unassigned",
			"open", "closed", "merged", "draft",
			"todo", "in progress", "done",
		},
		BotSuffixes: []string{"[bot]", "%5bbot%5d"},
		AvatarClasses: []string{
			"avatar", "avatar-user",
		},
		HovercardPathPrefix: "/users/",
	}
}

// Load reads a YAML rules file over the defaults: any list present in the
// file replaces the default list wholesale.
func Load(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("reading rules file: %w", err)
	}

	var overlay Rules
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Rules{}, fmt.Errorf("parsing rules file %q: %w", path, err)
	}

	r := Default()
	if overlay.DeniedPathSegments != nil {
		r.DeniedPathSegments = overlay.DeniedPathSegments
	}
	if overlay.ReservedWords != nil {
		r.ReservedWords = overlay.ReservedWords
	}
	if overlay.BotSuffixes != nil {
		r.BotSuffixes = overlay.BotSuffixes
	}
	if overlay.AvatarClasses != nil {
		r.AvatarClasses = overlay.AvatarClasses
	}
	if overlay.HovercardPathPrefix != "" {
		r.HovercardPathPrefix = overlay.HovercardPathPrefix
	}

	return r, nil
}

// IsDeniedSegment reports whether a path segment is on the denylist.
func (r Rules) IsDeniedSegment(segment string) bool {
	segment = strings.ToLower(segment)
	for _, s := range r.DeniedPathSegments {
		if s == segment {
			return true
		}
	}
	return false
}

// IsReserved reports whether text is a reserved status word.
func (r Rules) IsReserved(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	for _, w := range r.ReservedWords {
		if w == text {
			return true
		}
	}
	return false
}

// IsBot reports whether a handle denotes an automated account.
func (r Rules) IsBot(handle string) bool {
	handle = strings.ToLower(handle)
	for _, suffix := range r.BotSuffixes {
		if strings.HasSuffix(handle, suffix) {
			return true
		}
	}
	return false
}

// IsAvatarClass reports whether a class attribute value marks an avatar
// image.
func (r Rules) IsAvatarClass(class string) bool {
	for _, token := range strings.Fields(class) {
		for _, avatar := range r.AvatarClasses {
			if token == avatar {
				return true
			}
		}
	}
	return false
}

// Digest identifies the rule set's content; two rule sets with the same
// digest are interchangeable.
func (r Rules) Digest() string {
	data, err := yaml.Marshal(r)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
