package inspect

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/tdvo/jarl/internal"
	"github.com/tdvo/jarl/internal/awsconfig"
	"github.com/tdvo/jarl/internal/config"
)

// ListCommand prints the archive entries with their uncompressed size and,
// for layered archives, the owning layer.
type ListCommand struct {
	Layer string `short:"l" long:"layer" description:"only list entries of this layer"`

	Args struct {
		Jar string `positional-arg-name:"jar" description:"local path or s3://bucket/key of the archive" required:"yes"`
	} `positional-args:"yes"`

	awsconfig.ConfigLoaderMixin
}

func (c *ListCommand) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	_, _ = config.Load(ctx)

	src, err := internal.OpenSource(ctx, c, c.Args.Jar)
	if err != nil {
		return err
	}
	defer src.Close()

	a, err := src.OpenArchive()
	if err != nil {
		return err
	}

	if c.Layer != "" && !a.Layered() {
		return fmt.Errorf(`"%s" is not a layered archive`, c.Args.Jar)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, fh := range a.Entries() {
		var layer string
		if a.Layered() {
			if layer, err = a.Layers.Layer(fh.Name); err != nil {
				return err
			}
			if c.Layer != "" && layer != c.Layer {
				continue
			}

			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", humanize.IBytes(fh.UncompressedSize64), layer, fh.Name)
			continue
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\n", humanize.IBytes(fh.UncompressedSize64), fh.Name)
	}

	return w.Flush()
}
