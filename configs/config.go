package configs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/subsmarket/internal/models"
)

// DefaultTemplatesPath is read when neither a flag nor PATH_TEMPLATES is set.
const DefaultTemplatesPath = "configs/templates.yaml"

// TemplatesFile is the YAML layout accepted by `notifier seed-templates`.
type TemplatesFile struct {
	InstanceName string                  `yaml:"instance_name"`
	Templates    models.MessageTemplates `yaml:"templates"`
}

// TemplatesPath resolves the template file location from the flag value,
// then PATH_TEMPLATES, then the default.
func TemplatesPath(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv("PATH_TEMPLATES"); p != "" {
		return p
	}
	return DefaultTemplatesPath
}

// LoadTemplates reads and parses a template file.
func LoadTemplates(path string) (*TemplatesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file %s: %w", path, err)
	}

	var tf TemplatesFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse templates file %s: %w", path, err)
	}
	return &tf, nil
}
