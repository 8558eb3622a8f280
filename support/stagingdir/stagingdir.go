// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package stagingdir builds files in a temporary directory and atomically
// moves them into place when they are complete.
package stagingdir

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// D manages a staging directory.
//
// While D is active, it resides in a temporary location. Once finished, a file
// within D can be committed to its destination, or D can be destroyed along
// with all of its contents.
type D struct {
	// path is the path of the staging directory.
	path string
}

// New creates a new staging directory underneath of tempDir, named with the
// specified prefix.
//
// For Commit to be atomic, tempDir must be on the same filesystem as the
// committed file's destination.
func New(tempDir, prefix string) (*D, error) {
	stagingPath, err := os.MkdirTemp(tempDir, prefix)
	if err != nil {
		return nil, err
	}
	return &D{path: stagingPath}, nil
}

// Path returns the path of name within the staging directory.
func (sd *D) Path(name string) string {
	if sd.path == "" {
		panic("stagingdir: use of destroyed staging directory")
	}
	return filepath.Join(sd.path, name)
}

// Destroy purges the staging directory and its contents.
func (sd *D) Destroy() error {
	if sd.path == "" {
		// There is nothing to destroy.
		return nil
	}

	if err := os.RemoveAll(sd.path); err != nil {
		return err
	}

	sd.path = "" // Destroyed.
	return nil
}

// File is a staged file and the path it is committed to.
type File struct {
	// Name is the name of the file within the staging directory.
	Name string
	// Dest is the path that the file is moved to.
	Dest string
}

// Commit moves each staged file to its destination, in order, replacing any
// file already there. Each move is atomic. The staging directory is then
// destroyed.
func (sd *D) Commit(files ...File) error {
	if sd.path == "" {
		return errors.New("invalid staging directory")
	}

	for _, f := range files {
		src := sd.Path(f.Name)
		if err := os.Rename(src, f.Dest); err != nil {
			return errors.Wrapf(err, "moving staged file into place (%q => %q)", src, f.Dest)
		}
	}
	return sd.Destroy()
}
