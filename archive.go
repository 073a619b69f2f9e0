// Package jarl opens layered boot JARs: executable ZIP archives, possibly
// with a launch script prepended, whose manifest may point at a layer index
// splitting the archive's entries into container-image layers.
//
// The archive is read exclusively through explicit-offset reads against an
// io.ReaderAt, so sources backed by ranged S3 reads work the same as local
// files. The caller owns the byte source and must keep it open for as long
// as the Archive and any entry readers derived from it are in use.
package jarl

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"io/fs"

	"github.com/tdvo/jarl/layers"
	"github.com/tdvo/jarl/zipscan"
)

// Manifest main attributes naming the layer index resource and the location
// of the application's compiled classes within the archive.
const (
	LayersIndexAttribute = "Spring-Boot-Layers-Index"
	ClassesAttribute     = "Spring-Boot-Classes"
	LibAttribute         = "Spring-Boot-Lib"
)

const manifestName = "META-INF/MANIFEST.MF"

// Archive is a read-only view over a boot JAR. Immutable after Open and safe
// for concurrent use as long as src supports concurrent ReadAt (os.File and
// the s3reader package both do).
type Archive struct {
	// EOCD is the archive's end-of-central-directory record.
	EOCD *zipscan.EOCDRecord

	// Manifest holds the main attributes of META-INF/MANIFEST.MF, or an
	// empty Manifest if the archive has none.
	Manifest Manifest

	// Layers is the parsed layer index, or nil if the manifest does not
	// name one: the archive is then simply not layered, which is not an
	// error.
	Layers *layers.Index

	src     io.ReaderAt
	entries []*zipscan.FileHeader
	byName  map[string]*zipscan.FileHeader
}

// Open reads the archive tail records, the central directory, the manifest
// and, for layered archives, the layer index from src.
//
// src must remain open for the lifetime of the returned Archive. Malformed
// archives fail with an error wrapping zipscan.ErrFormat; a malformed layer
// index fails with an error wrapping layers.ErrMalformedIndex or
// layers.ErrEmptyIndex.
func Open(src io.ReaderAt, size int64, optFns ...func(*zipscan.Options)) (*Archive, error) {
	eocd, err := zipscan.Find(src, size, optFns...)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		EOCD:     eocd,
		Manifest: Manifest{},
		src:      src,
		entries:  make([]*zipscan.FileHeader, 0, eocd.RecordCount()),
		byName:   make(map[string]*zipscan.FileHeader, eocd.RecordCount()),
	}

	for fh, err := range eocd.Entries(src) {
		if err != nil {
			return nil, err
		}

		a.entries = append(a.entries, fh)
		a.byName[fh.Name] = fh
	}

	if _, ok := a.byName[manifestName]; ok {
		b, err := a.ReadEntry(manifestName)
		if err != nil {
			return nil, fmt.Errorf("read manifest error: %w", err)
		}
		if a.Manifest, err = ParseManifest(bytes.NewReader(b)); err != nil {
			return nil, err
		}
	}

	if err := a.loadLayers(); err != nil {
		return nil, err
	}

	return a, nil
}

// loadLayers opportunistically builds the layer index: no manifest marker or
// no index entry means the archive is not layered, and Layers stays nil.
func (a *Archive) loadLayers() error {
	location := a.Manifest.Get(LayersIndexAttribute)
	if location == "" {
		return nil
	}
	if _, ok := a.byName[location]; !ok {
		return nil
	}

	b, err := a.ReadEntry(location)
	if err != nil {
		return fmt.Errorf("read layer index %q error: %w", location, err)
	}

	a.Layers, err = layers.Parse(string(b), a.Manifest.Get(ClassesAttribute))
	return err
}

// Layered reports whether the archive carries a layer index.
func (a *Archive) Layered() bool {
	return a.Layers != nil
}

// Entries returns the central directory file headers in archive order. The
// returned slice must not be modified.
func (a *Archive) Entries() []*zipscan.FileHeader {
	return a.entries
}

// Entry returns the file header with the given name.
func (a *Archive) Entry(name string) (*zipscan.FileHeader, bool) {
	fh, ok := a.byName[name]
	return fh, ok
}

// EntriesInLayer returns the file headers owned by the named layer, in
// archive order. Fails with an error wrapping layers.ErrNotIndexed if any
// entry resolves to no layer at all.
func (a *Archive) EntriesInLayer(name string) ([]*zipscan.FileHeader, error) {
	if a.Layers == nil {
		return nil, fmt.Errorf("archive is not layered")
	}

	var matched []*zipscan.FileHeader
	for _, fh := range a.entries {
		switch l, err := a.Layers.Layer(fh.Name); {
		case err != nil:
			return nil, err
		case l == name:
			matched = append(matched, fh)
		}
	}

	return matched, nil
}

// OpenEntry returns a reader over the uncompressed content of the named
// entry. Only the store and deflate methods are supported, which covers
// every archive produced by standard JAR tooling.
//
// Readers obtained from the same Archive may be used concurrently.
func (a *Archive) OpenEntry(name string) (io.ReadCloser, error) {
	fh, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("open %q: %w", name, fs.ErrNotExist)
	}

	offset, err := fh.DataOffset(a.src)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", name, err)
	}

	section := io.NewSectionReader(a.src, offset, int64(fh.CompressedSize64))
	switch fh.Method {
	case zip.Store:
		return io.NopCloser(section), nil
	case zip.Deflate:
		return flate.NewReader(section), nil
	default:
		return nil, fmt.Errorf("open %q: unsupported compression method %d", name, fh.Method)
	}
}

// ReadEntry reads the whole uncompressed content of the named entry. Meant
// for small metadata entries such as the manifest and the layer index.
func (a *Archive) ReadEntry(name string) ([]byte, error) {
	r, err := a.OpenEntry(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %q error: %w", name, err)
	}
	return b, nil
}
