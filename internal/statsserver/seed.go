package statsserver

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/expl-one/livestats/internal/model"
)

// Seed is the initial state of a development server.
type Seed struct {
	Stats model.AggregateStats       `yaml:"stats"`
	Repos map[string]model.RepoStats `yaml:"repos"`
}

//go:embed seed.yaml
var defaultSeed []byte

// DefaultSeed returns the built-in seed.
func DefaultSeed() (Seed, error) {
	return parseSeed(defaultSeed)
}

// LoadSeed reads a seed file. An empty path loads the built-in seed.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("statsserver: read seed: %w", err)
	}
	return parseSeed(data)
}

func parseSeed(data []byte) (Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("statsserver: parse seed: %w", err)
	}
	for key, rs := range s.Repos {
		if rs.Name == "" {
			rs.Name = key
			s.Repos[key] = rs
		}
	}
	return s, nil
}

// Apply installs the seed as the served snapshot.
func (s Seed) Apply(srv *Server) {
	srv.SetSnapshot(s.Stats, s.Repos)
}
