// Package publish uploads packaged toolchains as GitHub releases and,
// optionally, to an S3-compatible mirror.
package publish

import (
	"context"
	"path/filepath"

	"github.com/yugabyte/build-gcc/internal/naming"
)

// Release is a packaged build ready for upload
type Release struct {
	Tag      string
	Archive  string
	Checksum string
}

// NewRelease derives the release for an install directory. The tag comes from
// the directory basename; a basename without the archive prefix is an
// invariant violation.
func NewRelease(installDir, archive, checksum string) (Release, error) {
	tag, err := naming.TagFromInstallDirBasename(filepath.Base(installDir))
	if err != nil {
		return Release{}, err
	}

	return Release{Tag: tag, Archive: archive, Checksum: checksum}, nil
}

// Publisher uploads a release somewhere
type Publisher interface {
	Name() string
	Publish(ctx context.Context, r Release) error
}

// Multi runs publishers in order and stops at the first failure
type Multi []Publisher

func (m Multi) Name() string { return "multi" }

func (m Multi) Publish(ctx context.Context, r Release) error {
	for _, p := range m {
		if err := p.Publish(ctx, r); err != nil {
			return err
		}
	}

	return nil
}
