// Package projects holds the fixed table that maps the project names shown on
// the landing page to the entity keys tracked by the stats service.
package projects

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Project statuses.
const (
	StatusLive       = "LIVE"
	StatusInProgress = "In Progress"
	StatusSoon       = "Soon"
)

// Project is one catalog entry.
type Project struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Repo      string `yaml:"repo"`
	Status    string `yaml:"status"`
	StartDate string `yaml:"start_date"`
	Color     string `yaml:"color"`
}

// Tracked reports whether the project is expected to have live repository data.
func (p Project) Tracked() bool {
	return p.Status == StatusLive || p.Status == StatusInProgress
}

// Catalog is an ordered, read-only project table.
type Catalog struct {
	projects []Project
	byID     map[string]Project
}

//go:embed catalog.yaml
var builtinYAML []byte

var builtin = mustParse(builtinYAML)

// Default returns the built-in catalog.
func Default() *Catalog { return builtin }

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Projects []Project `yaml:"projects"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("projects: parse catalog: %w", err)
	}
	c := &Catalog{
		projects: doc.Projects,
		byID:     make(map[string]Project, len(doc.Projects)),
	}
	for _, p := range doc.Projects {
		if p.ID == "" {
			return nil, fmt.Errorf("projects: entry %q has no id", p.Name)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("projects: duplicate id %q", p.ID)
		}
		c.byID[p.ID] = p
	}
	return c, nil
}

func mustParse(data []byte) *Catalog {
	c, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return c
}

// Resolve maps a project identifier to its entity key. Identifiers without a
// mapping resolve to themselves.
func (c *Catalog) Resolve(project string) string {
	if p, ok := c.byID[project]; ok && p.Repo != "" {
		return p.Repo
	}
	return project
}

// Lookup returns the catalog entry for a project identifier.
func (c *Catalog) Lookup(project string) (Project, bool) {
	p, ok := c.byID[project]
	return p, ok
}

// Projects returns the entries in catalog order.
func (c *Catalog) Projects() []Project {
	out := make([]Project, len(c.projects))
	copy(out, c.projects)
	return out
}
