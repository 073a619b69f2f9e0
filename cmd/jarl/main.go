package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/tdvo/jarl/internal/extract"
	"github.com/tdvo/jarl/internal/inspect"
)

var opts struct {
	Profile string `short:"p" long:"profile" description:"override AWS_PROFILE if given"`

	Layers  inspect.LayersCommand `command:"layers" description:"print the layers of a layered archive in order of least to most frequently changing"`
	List    inspect.ListCommand   `command:"list" alias:"ls" description:"list archive entries with their sizes and owning layers"`
	Extract extract.Command       `command:"extract" alias:"x" description:"extract an archive, or a subset of its layers, to a directory"`
}

func main() {
	p := flags.NewParser(&opts, flags.Default)
	p.CommandHandler = func(command flags.Commander, args []string) error {
		if opts.Profile != "" {
			if err := os.Setenv("AWS_PROFILE", opts.Profile); err != nil {
				return fmt.Errorf("set AWS_PROFILE error: %w", err)
			}
		}

		return command.Execute(args)
	}

	_, err := p.Parse()
	exit(err)
}
