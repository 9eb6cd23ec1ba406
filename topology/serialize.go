package topology

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Read loads a saved topology document. The exporter itself only ever sees
// the in-memory Graph; this is the file-driven entry the CLI uses.
func Read(path string) (*Graph, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g Graph
	if err := yaml.Unmarshal(file, &g); err != nil {
		return nil, fmt.Errorf("failed to parse topology %s: %w", path, err)
	}
	return &g, nil
}

func (g *Graph) WriteFile(path string) error {
	out, err := yaml.Marshal(g)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0700)
}
