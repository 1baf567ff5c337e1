package content

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/marmos91/baserepo/pkg/repo"
)

// Outcome classifies what a Get produced. The locator scheme decides:
// local files stream directly, http/https resolve to a redirect, anything
// else comes back to the caller unresolved.
type Outcome int

const (
	// OutcomeStream carries an open reader over local content
	OutcomeStream Outcome = iota

	// OutcomeRedirect instructs the caller to redirect to Location
	OutcomeRedirect

	// OutcomeUnavailable means the remote locator did not respond usefully;
	// URI echoes the original locator so the caller can retry manually
	OutcomeUnavailable

	// OutcomeNoContent carries a raw locator of an unrecognized scheme for
	// client-side interpretation
	OutcomeNoContent
)

// GetResult is the outcome of a content read.
type GetResult struct {
	Outcome Outcome

	// Item is the content item record, always set
	Item *repo.ContentItem

	// Reader streams the bytes for OutcomeStream. The caller must close it.
	Reader io.ReadCloser

	// Location and Status describe the redirect for OutcomeRedirect
	Location string
	Status   int

	// URI is the raw locator for OutcomeUnavailable and OutcomeNoContent
	URI string
}

// probeClient performs upstream probes for http/https locators. Redirect
// following is disabled so redirect-class upstream responses can be
// forwarded verbatim instead of being chased.
var probeClient = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// Get resolves the content at (resource, rawPath) and dispatches on the
// locator scheme.
func (s *Service) Get(ctx context.Context, resource *repo.Resource, rawPath string) (*GetResult, error) {
	normalized, _ := s.ResolvePath(rawPath)

	item, err := s.store.FindContentItem(ctx, resource.ID, normalized)
	if err != nil {
		return nil, err
	}

	locator, err := url.Parse(item.URI)
	if err != nil {
		return nil, repo.NewPathError(repo.ErrInternal, "stored content locator is malformed", item.URI)
	}

	switch locator.Scheme {
	case "file":
		return s.streamLocal(item)
	case "http", "https":
		return s.probeRemote(ctx, item)
	default:
		return &GetResult{Outcome: OutcomeNoContent, Item: item, URI: item.URI}, nil
	}
}

// streamLocal opens the local artifact for streaming.
func (s *Service) streamLocal(item *repo.ContentItem) (*GetResult, error) {
	path := item.URI[len("file://"):]

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, repo.NewPathError(repo.ErrNotFound, "content artifact missing", item.Path)
		}
		return nil, repo.NewPathError(repo.ErrInternal,
			fmt.Sprintf("failed to open content artifact: %v", err), item.Path)
	}

	return &GetResult{Outcome: OutcomeStream, Item: item, Reader: file}, nil
}

// probeRemote checks whether the remote locator responds before sending the
// caller there.
//
//   - a successful upstream response yields a redirect to the locator
//   - redirect-class upstream responses are forwarded verbatim
//   - unreachable or erroring upstreams yield OutcomeUnavailable, echoing
//     the original locator so the caller can retry manually
func (s *Service) probeRemote(ctx context.Context, item *repo.ContentItem) (*GetResult, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodHead, item.URI, nil)
	if err != nil {
		return &GetResult{Outcome: OutcomeUnavailable, Item: item, URI: item.URI}, nil
	}

	response, err := probeClient.Do(request)
	if err != nil {
		return &GetResult{Outcome: OutcomeUnavailable, Item: item, URI: item.URI}, nil
	}
	defer func() { _ = response.Body.Close() }()

	switch {
	case response.StatusCode >= 200 && response.StatusCode < 300:
		return &GetResult{
			Outcome:  OutcomeRedirect,
			Item:     item,
			Location: item.URI,
			Status:   http.StatusSeeOther,
		}, nil

	case response.StatusCode >= 300 && response.StatusCode < 400:
		return &GetResult{
			Outcome:  OutcomeRedirect,
			Item:     item,
			Location: response.Header.Get("Location"),
			Status:   response.StatusCode,
		}, nil

	default:
		return &GetResult{Outcome: OutcomeUnavailable, Item: item, URI: item.URI}, nil
	}
}
