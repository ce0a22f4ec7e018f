package loader

import (
	"fmt"
	"strings"

	"github.com/openziti/storelab/kernel/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	minNameLength = 3
	maxNameLength = 50
)

type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) String() string {
	return e.Path + ": " + e.Message
}

type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) Error() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.String())
	}
	return "invalid manifest: " + strings.Join(msgs, "; ")
}

func (r *ValidationResult) addError(path, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) addWarning(path, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidateManifestBytes checks a manifest without applying defaults. A
// non-nil error means the document could not be parsed at all.
func ValidateManifestBytes(data []byte) (*ValidationResult, error) {
	m := &model.Manifest{}
	if err := yaml.UnmarshalStrict(data, m); err != nil {
		return nil, errors.Wrap(err, "unable to parse manifest")
	}

	result := &ValidationResult{}
	if m.Defaults.Type != "" {
		if _, err := model.ParseStoreType(string(m.Defaults.Type)); err != nil {
			result.addError("defaults.type", "%v", err)
		}
	}

	if len(m.Stores) == 0 {
		result.addWarning("stores", "manifest declares no stores")
	}

	seen := make(map[string]int)
	for i, spec := range m.Stores {
		path := fmt.Sprintf("stores[%d]", i)
		validateName(result, path+".name", spec.Name)

		if prev, found := seen[spec.Name]; found && spec.Name != "" {
			result.addError(path+".name", "duplicate store name '%s' (also stores[%d])", spec.Name, prev)
		} else {
			seen[spec.Name] = i
		}

		storeType := spec.Type
		if storeType == "" {
			storeType = m.Defaults.Type
		}
		if storeType == "" {
			result.addError(path+".type", "no type given and no defaults.type")
		} else if _, err := model.ParseStoreType(string(storeType)); err != nil {
			result.addError(path+".type", "%v", err)
		}
	}
	return result, nil
}

func validateName(result *ValidationResult, path, name string) {
	if err := model.ValidateStoreName(name); err != nil {
		if normalized := model.NormalizeStoreName(name); normalized != "" && normalized != name {
			result.addError(path, "%v (did you mean '%s'?)", err, normalized)
		} else {
			result.addError(path, "%v", err)
		}
		return
	}
	if len(name) < minNameLength || len(name) > maxNameLength {
		result.addError(path, "store name '%s' must be between %d and %d characters", name, minNameLength, maxNameLength)
	}
}
