package operation

import (
	"sort"
	"sync"

	"github.com/operon-dev/operon/pkg/schema"
)

// Catalog is a thread-safe name → Definition registry backing the service
// surfaces (MCP tools, scheduler, CLI). Populate it at startup.
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// Info is a summary of a registered operation for listing.
type Info struct {
	Name     string   `json:"name"`
	Steps    []string `json:"steps"`
	DrySteps []string `json:"dry_steps,omitempty"`
	DryRun   bool     `json:"dry_run"`
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]*Definition)}
}

// Register adds a definition. Duplicate names are a conflict.
func (c *Catalog) Register(d *Definition) error {
	if d == nil {
		return schema.NewError(schema.ErrCodeValidation, "definition is nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.defs[d.Name()]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "operation %q already registered", d.Name())
	}
	c.defs[d.Name()] = d
	return nil
}

// MustRegister is Register, panicking on error. For startup wiring.
func (c *Catalog) MustRegister(d *Definition) {
	if err := c.Register(d); err != nil {
		panic(err)
	}
}

// Get retrieves a definition by name.
func (c *Catalog) Get(name string) (*Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.defs[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "operation %q not registered", name)
	}
	return d, nil
}

// List returns info for all registered operations, sorted by name.
func (c *Catalog) List() []Info {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]Info, 0, len(c.defs))
	for _, d := range c.defs {
		infos = append(infos, Info{
			Name:     d.Name(),
			Steps:    d.StepNames(),
			DrySteps: d.DryStepNames(),
			DryRun:   d.HasDryRun(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// Count returns the number of registered operations.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}
