package comment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/storage"
)

// LocationStore resolves where a build lives in the web app.
type LocationStore interface {
	GetBuildLocation(ctx context.Context, buildID string) (*storage.BuildLocation, error)
}

// URLBuilder computes the public page of a build below the server URL.
type URLBuilder struct {
	serverURL string
	store     LocationStore
}

var _ core.URLBuilder = (*URLBuilder)(nil)

func NewURLBuilder(serverURL string, store LocationStore) *URLBuilder {
	return &URLBuilder{serverURL: strings.TrimRight(serverURL, "/"), store: store}
}

// BuildURL returns {server}/{account}/{project}/builds/{number}.
func (u *URLBuilder) BuildURL(ctx context.Context, build *core.Build) (string, error) {
	loc, err := u.store.GetBuildLocation(ctx, build.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", core.Invariant("project or account not found for build %s", build.ID)
		}
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s/builds/%d",
		u.serverURL, url.PathEscape(loc.AccountSlug), url.PathEscape(loc.ProjectName), loc.Number), nil
}
