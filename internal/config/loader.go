// Package config loads optional ".jarl" configuration files that customise
// how archives are opened and extracted, such as per-bucket AWS settings.
package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-ini/ini"
)

// Loader can be used for loading .jarl configuration.
type Loader struct {
	cfg *ini.File
}

// Load will traverse the directory hierarchy upwards to find the first
// ".jarl" file available and load its contents into the Loader.
//
// The name of the .jarl file is returned; an empty name with a nil error
// means no file was found and defaults apply.
func (l *Loader) Load(ctx context.Context) (string, error) {
	var (
		path        = filepath.Join(".", ".jarl")
		fi          os.FileInfo
		err         error
		cur, parent string
	)

	if cur, err = os.Getwd(); err != nil {
		return "", err
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if fi, err = os.Stat(path); err == nil {
			if !fi.IsDir() {
				break
			}

			continue
		}

		if os.IsNotExist(err) {
			parent = filepath.Dir(cur)

			if parent == cur || parent == "." || parent == "/" {
				return "", nil
			}

			path = filepath.Join(parent, ".jarl")
			cur = parent
			continue
		}

		return "", err
	}

	return path, l.LoadFile(path)
}

// LoadFile loads the named ini file into the Loader.
func (l *Loader) LoadFile(path string) (err error) {
	if l.cfg, err = ini.Load(path); err != nil {
		l.cfg = ini.Empty()
		return err
	}

	return nil
}

// DefaultLoader is the default Loader instance for package-level methods.
var DefaultLoader = &Loader{cfg: ini.Empty()}

// Load calls Loader.Load on the DefaultLoader instance.
func Load(ctx context.Context) (string, error) {
	return DefaultLoader.Load(ctx)
}
