package types

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// JSON renders the chaos resource, map keys are emitted in sorted order
func (m *ChaosManifest) JSON() ([]byte, error) {
	if m == nil || m.Object == nil {
		return nil, errors.Errorf("manifest has no chaos resource")
	}
	return m.Object.MarshalJSON()
}

// YAML renders the chaos resource as a YAML document
func (m *ChaosManifest) YAML() ([]byte, error) {
	if m == nil || m.Object == nil {
		return nil, errors.Errorf("manifest has no chaos resource")
	}
	return yaml.Marshal(m.Object.Object)
}

// SaveManifest writes the YAML rendition of the chaos resource to path
func (m *ChaosManifest) SaveManifest(path string) error {
	data, err := m.YAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "unable to create the manifest directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "unable to write the manifest %v", path)
	}
	return nil
}
