// Package layers parses the layer index of a layered archive (the
// "layers.idx" resource of a layered boot JAR) and answers which layer owns
// a given archive entry.
//
// Layers split a packaged application into subsets that change at different
// rates so that container image builds can cache the slow-moving ones. The
// index lists layers in build order; entries are matched against each layer
// in that order and the first match wins.
package layers

import (
	"errors"
	"fmt"
	"iter"
	"strings"
)

var (
	// ErrMalformedIndex is returned by Parse if a non-blank line matches
	// neither the layer declaration nor the content grammar.
	ErrMalformedIndex = errors.New("layer index is malformed")

	// ErrEmptyIndex is returned by Parse if the index declares no layers.
	ErrEmptyIndex = errors.New("layer index declares no layers")

	// ErrNotIndexed is returned by [Index.Layer] if a queried entry matches
	// no layer. Every entry of a layered archive must be accounted for, so
	// a miss means the archive and its index disagree.
	ErrNotIndexed = errors.New("entry not found in layer index")
)

// Index is an ordered mapping from layer name to the entry paths or
// directory prefixes the layer owns. Immutable once returned by Parse and
// safe for concurrent use.
type Index struct {
	layers []layer

	// classesLocation is the directory holding the application's own
	// compiled output, used by ApplicationLayer.
	classesLocation string
}

type layer struct {
	name     string
	contents []string
}

// Parse builds an Index from the textual index format.
//
// The format is line-oriented UTF-8 with "\n" or "\r\n" line endings; blank
// lines are skipped. A line of the form `- "<name>":` declares a layer; a
// line of the form `  - "<path>"` adds an entry to the most recently
// declared layer, with a trailing "/" marking a directory-prefix rule. Any
// other line fails with ErrMalformedIndex, and an index without a single
// layer declaration fails with ErrEmptyIndex.
//
// classesLocation is the archive path of the application's compiled classes
// and is only consulted by [Index.ApplicationLayer].
func Parse(index, classesLocation string) (*Index, error) {
	x := &Index{classesLocation: classesLocation}

	for n, line := range strings.Split(index, "\n") {
		line = strings.ReplaceAll(line, "\r", "")
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, `- "`) && strings.HasSuffix(line, `":`) && len(line) >= 5:
			x.layers = append(x.layers, layer{name: line[3 : len(line)-2]})
		case strings.HasPrefix(line, `  - "`) && strings.HasSuffix(line, `"`) && len(line) >= 6:
			if len(x.layers) == 0 {
				return nil, fmt.Errorf("%w: line %d has content before any layer declaration", ErrMalformedIndex, n+1)
			}

			last := &x.layers[len(x.layers)-1]
			last.contents = append(last.contents, line[5:len(line)-1])
		default:
			return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedIndex, n+1, line)
		}
	}

	if len(x.layers) == 0 {
		return nil, ErrEmptyIndex
	}

	return x, nil
}

// Layer returns the name of the layer owning the given entry path.
//
// Layers are checked in declaration order; within a layer, the entry matches
// if it equals a recorded path exactly or if a recorded path ends with "/"
// and is a prefix of the entry. Returns an error wrapping ErrNotIndexed if
// no layer claims the entry.
func (x *Index) Layer(entry string) (string, error) {
	for _, l := range x.layers {
		for _, candidate := range l.contents {
			if candidate == entry || (strings.HasSuffix(candidate, "/") && strings.HasPrefix(entry, candidate)) {
				return l.name, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %q", ErrNotIndexed, entry)
}

// ApplicationLayer returns the layer owning the classes location the Index
// was built with, i.e. the layer holding the application's own code.
func (x *Index) ApplicationLayer() (string, error) {
	return x.Layer(x.classesLocation)
}

// Names returns the layer names in declaration order.
func (x *Index) Names() []string {
	names := make([]string, len(x.layers))
	for i, l := range x.layers {
		names[i] = l.name
	}
	return names
}

// All returns an iterator over layer names and their recorded contents in
// declaration order.
func (x *Index) All() iter.Seq2[string, []string] {
	return func(yield func(string, []string) bool) {
		for _, l := range x.layers {
			if !yield(l.name, l.contents) {
				return
			}
		}
	}
}
