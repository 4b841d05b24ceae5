package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tribunal/internal/domain"
)

// LoadCriteria reads a weighted rubric from a YAML file. An empty path
// returns the default rubric.
func LoadCriteria(path string) (domain.Criteria, error) {
	if path == "" {
		return domain.DefaultCriteria(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Criteria{}, fmt.Errorf("reading criteria file failed (%s): %w", path, err)
	}

	var criteria domain.Criteria
	if err := yaml.Unmarshal(data, &criteria); err != nil {
		return domain.Criteria{}, fmt.Errorf("parsing criteria file failed (%s): %w", path, err)
	}

	if criteria.Empty() {
		return domain.Criteria{}, fmt.Errorf("criteria file %s declares no items", path)
	}
	if err := validator.New().Struct(criteria); err != nil {
		return domain.Criteria{}, fmt.Errorf("criteria validation failed (%s): %w", path, err)
	}
	return criteria, nil
}
