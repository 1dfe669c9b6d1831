// Package archive packs an install directory into a gzip-compressed tarball.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Options control archive creation
type Options struct {
	// Progress draws a byte progress bar on this writer when it is a terminal
	Progress *os.File
}

// Create writes dst as a tar.gz of dir. Entries are named relative to dir's
// parent, so the archive unpacks into a directory named like dir.
func Create(ctx context.Context, dir, dst string, opts Options) error {
	total, err := treeSize(dir)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	if err := write(ctx, out, dir, total, opts); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}

	return out.Close()
}

func write(ctx context.Context, out io.Writer, dir string, total int64, opts Options) error {
	gz := pgzip.NewWriter(out)
	// Stops the compression workers on error paths; a second Close is a no-op
	defer gz.Close()

	tw := tar.NewWriter(gz)

	var bar *progressbar.ProgressBar
	if opts.Progress != nil && term.IsTerminal(int(opts.Progress.Fd())) {
		bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("archiving "+filepath.Base(dir)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
	}

	parent := filepath.Dir(dir)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		name, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}

		n, err := addEntry(tw, path, filepath.ToSlash(name), d)
		if bar != nil {
			_ = bar.Add64(n)
		}

		return err
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", dir, err)
	}

	if bar != nil {
		_ = bar.Finish()
	}

	if err := tw.Close(); err != nil {
		return err
	}

	return gz.Close()
}

func addEntry(tw *tar.Writer, path, name string, d fs.DirEntry) (int64, error) {
	info, err := d.Info()
	if err != nil {
		return 0, err
	}

	link := ""
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return 0, err
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return 0, err
	}

	hdr.Name = name
	if info.IsDir() {
		hdr.Name += "/"
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return 0, err
	}

	if !info.Mode().IsRegular() {
		return 0, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return io.Copy(tw, f)
}

func treeSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}

			total += info.Size()
		}

		return nil
	})

	return total, err
}
