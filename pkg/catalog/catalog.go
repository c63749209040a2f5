// Package catalog resolves item-kind references to footprints and metadata.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/DrSkyle/gridspawn/pkg/grid"
	"gopkg.in/yaml.v3"
)

// ItemKind describes one kind of item a template can spawn.
type ItemKind struct {
	ID       string            `yaml:"id" json:"id"`
	Name     string            `yaml:"name" json:"name"`
	Size     grid.Size         `yaml:"size" json:"size"`
	Tags     map[string]string `yaml:"tags" json:"tags,omitempty"`
	Metadata map[string]string `yaml:"metadata" json:"metadata,omitempty"`
}

// Catalog resolves item-kind ids.
type Catalog interface {
	Resolve(kind string) (ItemKind, bool)
}

// MemoryCatalog is a map-backed Catalog.
type MemoryCatalog struct {
	mu    sync.RWMutex
	kinds map[string]ItemKind
}

// NewMemoryCatalog creates a catalog holding the given kinds.
func NewMemoryCatalog(kinds ...ItemKind) *MemoryCatalog {
	c := &MemoryCatalog{kinds: make(map[string]ItemKind, len(kinds))}
	for _, k := range kinds {
		c.kinds[k.ID] = k
	}
	return c
}

// Register adds or replaces a kind.
func (c *MemoryCatalog) Register(k ItemKind) error {
	if k.ID == "" {
		return fmt.Errorf("item kind id is empty")
	}
	if !k.Size.Positive() {
		return fmt.Errorf("item kind %s: size %s must be positive", k.ID, k.Size)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds[k.ID] = k
	return nil
}

// Resolve implements Catalog.
func (c *MemoryCatalog) Resolve(kind string) (ItemKind, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.kinds[kind]
	return k, ok
}

// IDs returns the registered kind ids in sorted order.
func (c *MemoryCatalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.kinds))
	for id := range c.kinds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type catalogFile struct {
	Items []ItemKind `yaml:"items"`
}

// Load reads a YAML catalog file.
func Load(path string) (*MemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document of the form `items: [...]`.
func Parse(data []byte) (*MemoryCatalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog yaml: %w", err)
	}
	c := NewMemoryCatalog()
	for _, k := range f.Items {
		if err := c.Register(k); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Ensure MemoryCatalog implements Catalog.
var _ Catalog = (*MemoryCatalog)(nil)
