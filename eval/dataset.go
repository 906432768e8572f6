package eval

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Dataset is a collection of questions asked against one document.
type Dataset struct {
	Name     string     `json:"name" yaml:"name"`
	Document string     `json:"document" yaml:"document"`
	Tests    []TestCase `json:"tests" yaml:"tests"`
}

// TestCase defines a single evaluation question.
type TestCase struct {
	Question string `json:"question" yaml:"question"`
	// ExpectedFacts should appear in the answer. Each entry may hold
	// pipe-separated alternatives, e.g. "hanging|hanged".
	ExpectedFacts []string `json:"expected_facts" yaml:"expected_facts"`
	// ExpectedSources are section labels that should be cited, e.g. "Law 1".
	ExpectedSources []string `json:"expected_sources" yaml:"expected_sources"`
	Category        string   `json:"category" yaml:"category"`
}

// LoadDataset reads a YAML (or JSON) dataset file.
func LoadDataset(path string) (Dataset, error) {
	var ds Dataset
	data, err := os.ReadFile(path)
	if err != nil {
		return ds, fmt.Errorf("reading dataset: %w", err)
	}
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return ds, fmt.Errorf("parsing dataset %s: %w", path, err)
	}
	if len(ds.Tests) == 0 {
		return ds, fmt.Errorf("dataset %s has no tests", path)
	}
	return ds, nil
}
