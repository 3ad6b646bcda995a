package configx

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a run spec from a YAML file.
func Load(path string) (*RunSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run spec: %w", err)
	}
	return Parse(data)
}

// Parse decodes a run spec from YAML bytes. Unknown keys are ignored; an
// empty pipeline is legal (the engine validates it separately).
func Parse(data []byte) (*RunSpec, error) {
	var spec RunSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse run spec: %w", err)
	}
	for i := range spec.Pipeline {
		if spec.Pipeline[i].Module == "" {
			return nil, fmt.Errorf("parse run spec: pipeline entry %d has no module type", i)
		}
	}
	return &spec, nil
}
