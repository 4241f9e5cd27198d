package capabilities

import (
	"gopkg.in/yaml.v3"

	"llmarena/internal/domain/models/llm"
)

// ProviderCatalog represents all models for a provider
type ProviderCatalog struct {
	Provider string            `yaml:"provider" json:"provider"`
	Models   []llm.ModelConfig `yaml:"-" json:"models"` // Ordered slice, populated by custom unmarshaler
}

// UnmarshalYAML implements custom YAML unmarshaling to preserve model order from YAML file
func (p *ProviderCatalog) UnmarshalYAML(node *yaml.Node) error {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "provider" {
			p.Provider = node.Content[i+1].Value
			break
		}
	}

	type modelsOnly struct {
		Models map[string]llm.ModelConfig `yaml:"models"`
	}
	var m modelsOnly
	if err := node.Decode(&m); err != nil {
		return err
	}

	// Extract model keys in YAML order
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "models" {
			continue
		}
		modelsNode := node.Content[i+1]
		for j := 0; j+1 < len(modelsNode.Content); j += 2 {
			modelID := modelsNode.Content[j].Value
			model, ok := m.Models[modelID]
			if !ok {
				continue
			}
			model.ID = modelID
			model.Provider = p.Provider
			if model.Model == "" {
				model.Model = modelID
			}
			if model.Name == "" {
				model.Name = modelID
			}
			p.Models = append(p.Models, model)
		}
		break
	}

	return nil
}
