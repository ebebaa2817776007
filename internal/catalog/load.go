package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a single world catalog from a YAML file, validates it against
// the catalog schema, and normalizes it.
func Load(path string) (*World, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Decode once into a generic tree for schema validation, then again
	// into the typed catalog.
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := validateTree(tree); err != nil {
		return nil, fmt.Errorf("%s: schema: %w", filepath.Base(path), err)
	}

	var w World
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	w.normalize()
	if err := w.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &w, nil
}

// LoadDir loads every *.yaml / *.yml world catalog under dir, sorted by
// file name so world registration order is stable.
func LoadDir(dir string) ([]*World, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var worlds []*World
	seen := map[string]string{}
	for _, name := range names {
		w, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[w.ID]; dup {
			return nil, fmt.Errorf("world %q defined in both %s and %s", w.ID, prev, name)
		}
		seen[w.ID] = name
		worlds = append(worlds, w)
	}
	return worlds, nil
}

// normalize fills in ids derivable from map keys and drops obviously
// malformed leaves so downstream code can assume basic shape.
func (w *World) normalize() {
	for id, g := range w.Routines {
		if g == nil {
			delete(w.Routines, id)
			continue
		}
		if g.ID == "" {
			g.ID = id
		}
	}
	for id, a := range w.Activities {
		if a == nil {
			delete(w.Activities, id)
			continue
		}
		if a.ID == "" {
			a.ID = id
		}
	}
}

// validate enforces structural invariants the schema cannot express.
// A malformed node is a configuration error: logged and dropped, never
// fatal, so one bad node cannot take a whole world offline.
func (w *World) validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return fmt.Errorf("world id is required")
	}
	for _, g := range w.Routines {
		kept := g.Nodes[:0]
		for _, n := range g.Nodes {
			switch n.NodeType {
			case NodeTimeSlot:
				if n.TimeRangeSeconds == nil {
					slog.Warn("dropping time_slot node without time range",
						"world", w.ID, "routine", g.ID, "node", n.ID)
					continue
				}
			case NodeDecision, NodeActivity:
			default:
				slog.Warn("dropping node with unknown type",
					"world", w.ID, "routine", g.ID, "node", n.ID, "type", string(n.NodeType))
				continue
			}
			kept = append(kept, n)
		}
		g.Nodes = kept
	}
	return nil
}
