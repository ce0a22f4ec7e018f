package loader

import (
	"os"

	"github.com/openziti/storelab/kernel/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// LoadManifest reads and validates an apply manifest. Stores without a type
// take the manifest default.
func LoadManifest(path string) (*model.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read manifest [%s]", path)
	}
	return ParseManifest(data)
}

func ParseManifest(data []byte) (*model.Manifest, error) {
	result, err := ValidateManifestBytes(data)
	if err != nil {
		return nil, err
	}
	if !result.IsValid() {
		return nil, result
	}

	m := &model.Manifest{}
	if err := yaml.UnmarshalStrict(data, m); err != nil {
		return nil, errors.Wrap(err, "unable to parse manifest")
	}
	for i := range m.Stores {
		if m.Stores[i].Type == "" {
			m.Stores[i].Type = m.Defaults.Type
		}
	}
	return m, nil
}
