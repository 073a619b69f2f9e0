// Package inspect implements the read-only subcommands that print archive
// metadata: layer listings and entry listings.
package inspect

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/tdvo/jarl"
	"github.com/tdvo/jarl/internal"
	"github.com/tdvo/jarl/internal/awsconfig"
	"github.com/tdvo/jarl/internal/config"
)

// LayersCommand prints the layer names of a layered archive in the order
// the index declares them.
type LayersCommand struct {
	Args struct {
		Jar string `positional-arg-name:"jar" description:"local path or s3://bucket/key of the archive" required:"yes"`
	} `positional-args:"yes"`

	awsconfig.ConfigLoaderMixin
}

func (c *LayersCommand) Execute(args []string) error {
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

	if !a.Layered() {
		return fmt.Errorf(`"%s" is not a layered archive (no %s manifest attribute)`, c.Args.Jar, jarl.LayersIndexAttribute)
	}

	application, err := a.Layers.ApplicationLayer()
	if err != nil {
		return err
	}

	for _, name := range a.Layers.Names() {
		if name == application {
			fmt.Printf("%s (application)\n", name)
			continue
		}
		fmt.Println(name)
	}

	return nil
}
