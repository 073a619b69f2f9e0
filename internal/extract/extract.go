package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/tdvo/jarl"
)

// extractFile writes one archive entry under the output directory, nested in
// its layer's subdirectory for layered archives.
func (c *Command) extractFile(ctx context.Context, a *jarl.Archive, f planned, output string, bar *progressbar.ProgressBar) error {
	dst := filepath.Join(output, f.subdir, filepath.FromSlash(f.name))

	fh, _ := a.Entry(f.name)
	w, err := createExclFile(dst, fh.Mode().Perm())
	if err != nil {
		return err
	}

	r, err := a.OpenEntry(f.name)
	if err != nil {
		_ = w.Close()
		return err
	}

	err = jarl.CopyBufferWithContext(ctx, io.MultiWriter(w, bar), r, nil)
	_, _ = w.Close(), r.Close()
	if err != nil {
		return fmt.Errorf(`extract "%s" error: %w`, f.name, err)
	}

	return nil
}

// createExclFile creates the file at path for writing, failing if it already
// exists, and creating parent directories as needed. A zero perm falls back
// to 0644 since many JAR entries carry no external attributes.
func createExclFile(path string, perm os.FileMode) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf(`create directory for "%s" error: %w`, path, err)
	}

	if perm == 0 {
		perm = 0644
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return nil, fmt.Errorf(`create file "%s" error: %w`, path, err)
	}

	return f, nil
}
