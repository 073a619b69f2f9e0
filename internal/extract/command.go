// Package extract implements the extract subcommand which writes the
// entries of an archive, optionally restricted to a set of layers, to a
// local directory tree.
package extract

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/tdvo/jarl"
	"github.com/tdvo/jarl/internal"
	"github.com/tdvo/jarl/internal/awsconfig"
	"github.com/tdvo/jarl/internal/config"
	"golang.org/x/time/rate"
)

type Command struct {
	Dir    string   `short:"d" long:"dir" description:"output directory; defaults to the archive name without extension"`
	Layers []string `short:"l" long:"layer" description:"extract only the named layers; repeatable"`
	Ranged bool     `long:"ranged" description:"for S3 sources, use ranged reads instead of downloading the whole object first"`

	Args struct {
		Jar string `positional-arg-name:"jar" description:"local path or s3://bucket/key of the archive" required:"yes"`
	} `positional-args:"yes"`

	awsconfig.ConfigLoaderMixin

	logger *log.Logger
}

func (c *Command) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	_, _ = config.Load(ctx)

	ctx = internal.WithPrefixLogger(ctx, fmt.Sprintf(`"%s" - `, internal.TruncateRightWithSuffix(filepath.Base(c.Args.Jar), 30, "...")))
	c.logger = internal.MustLogger(ctx)

	src, err := internal.OpenSource(ctx, c, c.Args.Jar)
	if err != nil {
		return err
	}
	defer src.Close()

	// extracting most of a remote archive with ranged reads means one
	// GetObject per entry; downloading the object once is usually faster
	// unless only a few layers are wanted.
	if src.Remote() && len(c.Layers) == 0 && !c.Ranged {
		path, cleanup, err := c.download(ctx, src)
		if err != nil {
			return err
		}
		defer cleanup()

		if src, err = internal.OpenSource(ctx, c, path); err != nil {
			return err
		}
		defer src.Close()
	}

	a, err := src.OpenArchive()
	if err != nil {
		return err
	}

	if len(c.Layers) > 0 && !a.Layered() {
		return fmt.Errorf(`"%s" is not a layered archive`, c.Args.Jar)
	}

	output := c.outputDir()
	if err = os.MkdirAll(output, 0755); err != nil {
		return fmt.Errorf(`create output directory "%s" error: %w`, output, err)
	}

	files, totalSize, err := c.plan(a)
	if err != nil {
		return err
	}

	c.logger.Printf(`extracting %d files to "%s"`, len(files), output)
	bar := internal.DefaultBytes(totalSize, "extracting")
	defer bar.Close()

	sometimes := rate.Sometimes{Interval: 5 * time.Second}
	for i, f := range files {
		if err = c.extractFile(ctx, a, f, output, bar); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			sometimes.Do(func() {
				c.logger.Printf(`[%d/%d] done extracting "%s"`, i+1, len(files), f.name)
			})
		}
	}

	c.logger.Printf(`successfully extracted to "%s"`, output)
	return nil
}

// planned is one entry to be written, together with the directory (layer
// name or "") it lands in under the output directory.
type planned struct {
	name   string
	subdir string
}

// plan resolves the set of files to extract and their total uncompressed
// size. Every entry of a layered archive must resolve to a layer; an
// unindexed entry aborts the whole extraction.
func (c *Command) plan(a *jarl.Archive) (files []planned, totalSize int64, err error) {
	if a.Layered() {
		if names := a.Layers.Names(); len(c.Layers) > 0 {
			for _, want := range c.Layers {
				if !slices.Contains(names, want) {
					return nil, 0, fmt.Errorf(`no layer "%s" in archive; have: %s`, want, strings.Join(names, ", "))
				}
			}
		}
	}

	for _, fh := range a.Entries() {
		if strings.HasSuffix(fh.Name, "/") {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(fh.Name)) {
			return nil, 0, fmt.Errorf(`refusing to extract entry with unsafe path "%s"`, fh.Name)
		}

		p := planned{name: fh.Name}
		if a.Layered() {
			if p.subdir, err = a.Layers.Layer(fh.Name); err != nil {
				return nil, 0, err
			}
			if len(c.Layers) > 0 && !slices.Contains(c.Layers, p.subdir) {
				continue
			}
		}

		files = append(files, p)
		totalSize += int64(fh.UncompressedSize64)
	}

	return files, totalSize, nil
}

// outputDir picks the output directory: the -d flag, then the [extract]
// section of .jarl, then the archive name without extension.
func (c *Command) outputDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	if dir := config.ForExtract().Dir; dir != "" {
		return dir
	}

	base := filepath.Base(c.Args.Jar)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
