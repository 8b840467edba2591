package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
)

// seedFile is the YAML shape accepted by `sitemapctl seed`: one root page
// with nested children
type seedFile struct {
	Sitemap int64    `yaml:"sitemap"`
	Root    seedPage `yaml:"root"`
}

type seedPage struct {
	ID       int64             `yaml:"id"`
	Title    string            `yaml:"title"`
	Path     string            `yaml:"path"`
	Status   string            `yaml:"status"`
	X        *float64          `yaml:"x"`
	Y        *float64          `yaml:"y"`
	Attrs    map[string]string `yaml:"attributes"`
	Children []seedPage        `yaml:"children"`
}

func readSeedFile(path string) (*seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &f, nil
}

// nodes flattens the tree parent-first
func (f *seedFile) nodes() ([]*entities.Node, error) {
	sitemapID, err := valueobjects.NewSitemapID(f.Sitemap)
	if err != nil {
		return nil, err
	}

	var out []*entities.Node
	seen := map[int64]bool{}
	var walk func(p seedPage, parent *valueobjects.NodeID) error
	walk = func(p seedPage, parent *valueobjects.NodeID) error {
		id, err := valueobjects.NewNodeID(p.ID)
		if err != nil {
			return fmt.Errorf("page %q: %w", p.Title, err)
		}
		if seen[p.ID] {
			return fmt.Errorf("page id %d appears twice", p.ID)
		}
		seen[p.ID] = true

		snap := entities.NodeSnapshot{
			ID:         id,
			SitemapID:  sitemapID,
			Title:      p.Title,
			Path:       p.Path,
			ParentID:   parent,
			IsRoot:     parent == nil,
			Status:     entities.NodeStatus(p.Status),
			Attributes: p.Attrs,
		}
		if p.X != nil && p.Y != nil {
			pos, err := valueobjects.NewPosition(*p.X, *p.Y)
			if err != nil {
				return fmt.Errorf("page %d: %w", p.ID, err)
			}
			snap.Position = &pos
		}
		node, err := entities.ReconstructNode(snap)
		if err != nil {
			return fmt.Errorf("page %d: %w", p.ID, err)
		}
		out = append(out, node)

		for _, child := range p.Children {
			if err := walk(child, &id); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(f.Root, nil); err != nil {
		return nil, err
	}
	return out, nil
}
