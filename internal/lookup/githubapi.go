package lookup

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v80/github"
)

// NewGitHubAPI returns a Func backed by the GitHub users API. The origin is
// ignored: a bridge configured for API lookup serves a single GitHub
// installation, with apiURL overriding the base URL for GHES. Lookups are
// unauthenticated reads of public profile data.
func NewGitHubAPI(client *http.Client, apiURL string) (Func, error) {
	gh := github.NewClient(client)

	if apiURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(apiURL, apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", apiURL, err)
		}
	}

	return func(ctx context.Context, origin, handle string) (string, error) {
		user, _, err := gh.Users.Get(ctx, handle)
		if err != nil {
			return "", fmt.Errorf("user lookup for %q: %w", handle, err)
		}

		return user.GetName(), nil
	}, nil
}
