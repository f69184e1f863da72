package types

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// LoadIntent reads an experiment spec file, JSON or YAML
func LoadIntent(path string) (ExperimentIntent, error) {
	intent := ExperimentIntent{}
	data, err := os.ReadFile(path)
	if err != nil {
		return intent, errors.Wrapf(err, "unable to read the experiment spec %v", path)
	}
	// JSON documents are valid YAML, one decoder serves both formats.
	// Unknown keys are ignored so engine specific parameters pass through.
	if err := yaml.Unmarshal(data, &intent); err != nil {
		return intent, errors.Wrapf(err, "unable to parse the experiment spec %v", path)
	}
	return intent, nil
}
