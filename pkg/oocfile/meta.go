package oocfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/midgard-pointcloud/pkg/points"
)

// Meta is the content of meta.json.
type Meta struct {
	Octree             OctreeMeta      `json:"octree"`
	PointAccessorBools map[string]bool `json:"pointAccessorBools"`
	PointType          points.Type     `json:"pointType"`
}

// OctreeMeta describes the tree as a whole.
type OctreeMeta struct {
	MaxLevel              int      `json:"maxLevel"`
	MaxNoOfPointsInBucket int      `json:"maxNoOfPointsInBucket"`
	SpacingFactor         float64  `json:"spacingFactor"` // root resolution
	RootNode              RootNode `json:"rootNode"`
}

// RootNode holds the root cube.
type RootNode struct {
	Center [3]float64 `json:"center"`
	Size   float64    `json:"size"`
}

// RootCenter returns the root centre as a vector.
func (m *Meta) RootCenter() mgl64.Vec3 {
	return mgl64.Vec3(m.Octree.RootNode.Center)
}

// Schema returns the point schema named by PointType.
func (m *Meta) Schema() (points.Schema, error) {
	return points.Lookup(string(m.PointType))
}

// Validate checks that the meta describes a readable tree.
func (m *Meta) Validate() error {
	if m.Octree.RootNode.Size <= 0 {
		return fmt.Errorf("%w: root size %f", ErrInvalidMeta, m.Octree.RootNode.Size)
	}
	if m.Octree.MaxLevel < 0 {
		return fmt.Errorf("%w: max level %d", ErrInvalidMeta, m.Octree.MaxLevel)
	}
	if _, err := m.Schema(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMeta, err)
	}
	return nil
}

// WriteMeta writes m to dir/meta.json.
func WriteMeta(dir string, m *Meta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetaFile), data, 0o644); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return nil
}

// ReadMeta reads and validates dir/meta.json.
func ReadMeta(dir string) (*Meta, error) {
	path := filepath.Join(dir, MetaFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, missing(path, err)
	}

	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMeta, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
