// Package oocfile reads and writes the on-disk octree format: a meta.json header,
// a binary octree.hierarchy stream and one Octants/<guid>.node payload file per
// octant that holds points.
package oocfile

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// File and directory names inside an octree folder.
const (
	MetaFile      = "meta.json"
	HierarchyFile = "octree.hierarchy"
	OctantsDir    = "Octants"
	NodeExt       = ".node"
)

// Errors.
var (
	ErrMissingResource = errors.New("missing octree resource")
	ErrInvalidMeta     = errors.New("invalid octree meta")
	ErrInvalidNode     = errors.New("invalid node file")
	ErrStrideMismatch  = errors.New("node stride does not match point type")
)

// NodeFileName returns the payload file name for guid: the lowercase hex of its
// 16 bytes followed by NodeExt.
func NodeFileName(guid uuid.UUID) string {
	return hex.EncodeToString(guid[:]) + NodeExt
}

// NodePath returns the payload file path for guid inside dir.
func NodePath(dir string, guid uuid.UUID) string {
	return filepath.Join(dir, OctantsDir, NodeFileName(guid))
}

// CheckFolder verifies that dir holds a meta file, a hierarchy file and an
// Octants directory.
func CheckFolder(dir string) error {
	for _, name := range []string{MetaFile, HierarchyFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			return missing(filepath.Join(dir, name), err)
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %s is a directory", ErrMissingResource, name)
		}
	}

	info, err := os.Stat(filepath.Join(dir, OctantsDir))
	if err != nil {
		return missing(filepath.Join(dir, OctantsDir), err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrMissingResource, OctantsDir)
	}
	return nil
}

// missing wraps a not-exist error with ErrMissingResource and passes other errors through.
func missing(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrMissingResource, path)
	}
	return fmt.Errorf("stat %s: %w", path, err)
}
