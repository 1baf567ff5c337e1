// Package none implements the default versioning service: direct filesystem
// writes with no retained history.
//
// "None" refers to the versioning strategy, not to the storage: every write
// goes to a deterministic, collision-resistant path below the base
// directory, derived from the resource id, the logical path and the
// per-write version id. Two versions of the same logical path therefore
// occupy distinct physical locations, which is what allows the content
// service to keep the old artifact alive until the new record is persisted.
package none

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marmos91/baserepo/internal/logger"
	"github.com/marmos91/baserepo/pkg/content/versioning"
)

// FSService implements versioning.Service on the local filesystem.
type FSService struct {
	basePath string
}

// Config contains filesystem backend settings.
type Config struct {
	// BasePath is the directory all artifacts are stored under.
	BasePath string `mapstructure:"base_path"`
}

// NewFSService creates the filesystem versioning service.
func NewFSService(cfg Config) (*FSService, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("filesystem versioning requires a base path")
	}

	abs, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path %q: %w", cfg.BasePath, err)
	}

	return &FSService{basePath: abs}, nil
}

// Configure creates the base directory if it doesn't exist.
func (s *FSService) Configure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create content base directory: %w", err)
	}

	return nil
}

// physicalPath derives the artifact location. Hashing keeps the layout flat
// and collision-resistant regardless of what the logical path contains; the
// two-character fan-out directory avoids unbounded directory sizes.
func (s *FSService) physicalPath(resourceID, path, versionID string) string {
	sum := sha256.Sum256([]byte(resourceID + ":" + path + ":" + versionID))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(s.basePath, resourceID, name[:2], name)
}

func (s *FSService) Write(ctx context.Context, resourceID, callerID, path string, r io.Reader, opts versioning.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	destination := s.physicalPath(resourceID, path, opts[versioning.OptionVersion])
	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return "", fmt.Errorf("failed to create content directory: %w", err)
	}

	file, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for writing: %w", destination, err)
	}

	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		// Never leave a partial artifact behind.
		if removeErr := os.Remove(destination); removeErr != nil {
			logger.Warn("failed to remove partial artifact %s: %v", destination, removeErr)
		}
		return "", fmt.Errorf("failed to stream content to %s: %w", destination, err)
	}

	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize %s: %w", destination, err)
	}

	logger.Debug("stored content for %s/%s at %s (caller %s)", resourceID, path, destination, callerID)
	return "file://" + destination, nil
}

func (s *FSService) Read(ctx context.Context, resourceID, callerID, path, versionID string, w io.Writer, opts versioning.Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	source := s.physicalPath(resourceID, path, versionID)
	file, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer func() { _ = file.Close() }()

	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("failed to read %s: %w", source, err)
	}

	return nil
}

func (s *FSService) Info(ctx context.Context, resourceID, path, versionID string, opts versioning.Options) (*versioning.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	physical := s.physicalPath(resourceID, path, versionID)
	stat, err := os.Stat(physical)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", physical, err)
	}

	return &versioning.Info{
		ResourceID: resourceID,
		Path:       path,
		VersionID:  versionID,
		URI:        "file://" + physical,
		Size:       stat.Size(),
		Timestamp:  stat.ModTime(),
	}, nil
}

// BasePath returns the resolved artifact root. Used by cleanup and tests.
func (s *FSService) BasePath() string {
	return s.basePath
}

var _ versioning.Service = (*FSService)(nil)
