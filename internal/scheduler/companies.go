package scheduler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"harvest-engine/internal/api/validation"
	"harvest-engine/pkg/models"
)

// companiesFile is the on-disk shape of scheduler.companies_file
type companiesFile struct {
	Companies []models.CompanyConfig `yaml:"companies" validate:"dive"`
}

// LoadCompanies reads and validates a companies YAML file
func LoadCompanies(path string) ([]models.CompanyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read companies file %s: %w", path, err)
	}

	var file companiesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse companies file %s: %w", path, err)
	}
	if err := validation.Validator().Struct(file); err != nil {
		return nil, fmt.Errorf("invalid companies file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Companies))
	for _, c := range file.Companies {
		if seen[c.ID] {
			return nil, fmt.Errorf("invalid companies file %s: duplicate company id %q", path, c.ID)
		}
		seen[c.ID] = true
	}
	return file.Companies, nil
}
