// Package content implements the content addressing service: the mapping
// from (resource, logical path) to physical bytes.
//
// The service owns overwrite/force semantics, the single-pass
// digest/size/media-type computation on upload and the ordering guarantee
// on overwrite (the old artifact is deleted only after the new record is
// durably persisted, so a crash never leaves zero valid copies). Physical
// storage is delegated to a pluggable versioning service.
//
// Concurrency: no per-path lock is taken. Two concurrent force overwrites
// of the same path race non-deterministically on which write wins and which
// artifact is deleted. This is a documented gap, not an oversight; the ETag
// guard in the facade serializes resource-level mutations, content bytes are
// only crash-safe.
package content

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/marmos91/baserepo/internal/logger"
	"github.com/marmos91/baserepo/pkg/content/versioning"
	"github.com/marmos91/baserepo/pkg/repo"
	"github.com/marmos91/baserepo/pkg/store"
)

// sniffLimit is how many leading bytes are buffered for media-type
// detection. Matches the default read-ahead of the mimetype library.
const sniffLimit = 3072

// Service is the content addressing service.
type Service struct {
	store      store.Store
	versioning versioning.Service
}

// NewService creates a content service on the given store and versioning
// backend.
func NewService(s store.Store, v versioning.Service) *Service {
	return &Service{store: s, versioning: v}
}

// PutRequest describes one upload or registration.
type PutRequest struct {
	// Stream supplies the content bytes. When nil, URI must carry an
	// external content locator instead.
	Stream io.Reader

	// URI is the external content locator for registrations without an
	// upload.
	URI string

	// MediaType overrides media-type sniffing when non-empty.
	MediaType string

	// Metadata is a free-form key/value map stored on the item.
	Metadata map[string]string

	// Tags is the item's tag set.
	Tags []string

	// Force permits overwriting an existing item at the same path.
	Force bool
}

// ResolvePath canonicalizes a raw logical path and returns its depth.
func (s *Service) ResolvePath(rawPath string) (string, int) {
	normalized := repo.Normalize(rawPath)
	return normalized, repo.Depth(normalized)
}

// Put uploads or registers content at (resource, rawPath).
//
// An existing item at the normalized path fails with AlreadyExists unless
// force is set; with force the old physical locator is remembered and
// deleted only after the new record is persisted.
//
// When a stream is supplied it is consumed exactly once; byte count, SHA-1
// digest and (absent a caller-supplied media type) content-type sniffing
// all happen on that single pass. Without a stream the request must carry
// an external locator; registering a file scheme locator directly requires
// the global administrator role, otherwise any caller could map arbitrary
// local paths into the repository.
func (s *Service) Put(ctx context.Context, resource *repo.Resource, rawPath string, req PutRequest, caller repo.Agent) (*repo.ContentItem, error) {
	normalized, depth := s.ResolvePath(rawPath)
	if normalized == "" {
		return nil, repo.NewPathError(repo.ErrBadArgument, "content path must not denote the resource root", rawPath)
	}

	// Existing item lookup ignores soft filters (tags): a path is occupied
	// no matter how the item is tagged.
	var oldURI string
	existing, err := s.store.FindContentItem(ctx, resource.ID, normalized)
	switch {
	case err == nil && !req.Force:
		return nil, repo.NewPathError(repo.ErrAlreadyExists,
			"content already exists at path, use force to overwrite", normalized)
	case err == nil:
		oldURI = existing.URI
	case !repo.IsCode(err, repo.ErrNotFound):
		return nil, err
	}

	item := &repo.ContentItem{
		ID:         uuid.NewString(),
		ResourceID: resource.ID,
		Path:       normalized,
		Depth:      depth,
		MediaType:  req.MediaType,
		Metadata:   req.Metadata,
		Tags:       req.Tags,
	}
	if existing != nil {
		// Overwrite mutates the record in place, keeping its identity.
		item.ID = existing.ID
	}

	switch {
	case req.Stream != nil:
		if err := s.streamUpload(ctx, resource, normalized, req, item, caller); err != nil {
			return nil, err
		}

	case req.URI != "":
		locator, err := url.Parse(req.URI)
		if err != nil {
			return nil, repo.NewPathError(repo.ErrBadArgument, "invalid content locator", req.URI)
		}
		if locator.Scheme == "file" && !caller.Administrator {
			return nil, repo.NewPathError(repo.ErrForbidden,
				"registering local file locators requires the administrator role", req.URI)
		}
		item.URI = req.URI

	default:
		return nil, repo.NewPathError(repo.ErrBadArgument,
			"neither content stream nor content locator provided", normalized)
	}

	if err := s.store.SaveContentItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to persist content item: %w", err)
	}

	// Only now, with the new record durable, is the superseded artifact
	// removed. A crash before this point leaves two copies, never zero.
	if oldURI != "" && oldURI != item.URI {
		s.removeLocalArtifact(oldURI)
	}

	return item, nil
}

// streamUpload streams the request body to the versioning backend while
// accumulating size, digest and a sniff buffer in the same pass.
func (s *Service) streamUpload(ctx context.Context, resource *repo.Resource, path string, req PutRequest, item *repo.ContentItem, caller repo.Agent) error {
	digest := sha1.New()
	counter := &countingWriter{}
	sniffer := &sniffBuffer{}

	tee := io.TeeReader(req.Stream, io.MultiWriter(digest, counter, sniffer))

	uri, err := s.versioning.Write(ctx, resource.ID, caller.Principal, path, tee, versioning.Options{
		versioning.OptionVersion: uuid.NewString(),
	})
	if err != nil {
		return repo.NewPathError(repo.ErrInternal,
			fmt.Sprintf("content upload failed: %v", err), path)
	}

	item.URI = uri
	item.Size = counter.n
	item.Hash = "sha1:" + hex.EncodeToString(digest.Sum(nil))

	if item.MediaType == "" {
		item.MediaType = mimetype.Detect(sniffer.Bytes()).String()
	}

	return nil
}

// Delete removes the content item at (resource, rawPath). When the locator
// denotes local storage the physical artifact is removed after the metadata
// delete commits.
func (s *Service) Delete(ctx context.Context, resource *repo.Resource, rawPath string) error {
	normalized, _ := s.ResolvePath(rawPath)

	item, err := s.store.FindContentItem(ctx, resource.ID, normalized)
	if err != nil {
		return err
	}

	if err := s.store.DeleteContentItem(ctx, resource.ID, normalized); err != nil {
		return err
	}

	s.removeLocalArtifact(item.URI)
	return nil
}

// List returns the resource's content items, optionally filtered by tag.
func (s *Service) List(ctx context.Context, resource *repo.Resource, tag string) ([]*repo.ContentItem, error) {
	return s.store.ListContentItems(ctx, resource.ID, tag)
}

// removeLocalArtifact deletes the physical file behind a file scheme
// locator. Non-local locators are left untouched. Failures are logged, not
// propagated: the metadata commit already happened and must stand.
func (s *Service) removeLocalArtifact(uri string) {
	if !strings.HasPrefix(uri, "file://") {
		return
	}

	path := strings.TrimPrefix(uri, "file://")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove superseded artifact %s: %v", path, err)
	}
}

// countingWriter counts bytes passing through the upload tee.
type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

// sniffBuffer retains the first sniffLimit bytes of the stream for
// media-type detection.
type sniffBuffer struct {
	buf []byte
}

func (w *sniffBuffer) Write(p []byte) (int, error) {
	if remaining := sniffLimit - len(w.buf); remaining > 0 {
		if len(p) > remaining {
			w.buf = append(w.buf, p[:remaining]...)
		} else {
			w.buf = append(w.buf, p...)
		}
	}
	return len(p), nil
}

func (w *sniffBuffer) Bytes() []byte {
	return w.buf
}
