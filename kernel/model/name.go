package model

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	storeNameRE       = regexp.MustCompile(`^[a-z0-9-]+$`)
	storeNameStripRE  = regexp.MustCompile(`[^a-z0-9-]`)
	maxStoreNameLabel = 63
)

// NormalizeStoreName applies the input filter: lowercase, then drop anything
// outside [a-z0-9-]. It is idempotent.
func NormalizeStoreName(raw string) string {
	return storeNameStripRE.ReplaceAllString(strings.ToLower(raw), "")
}

// ValidateStoreName checks the client-side rule only; the server may still
// reject (length limits, duplicates).
func ValidateStoreName(name string) error {
	if name == "" {
		return fmt.Errorf("store name must not be empty")
	}
	if len(name) > maxStoreNameLabel {
		return fmt.Errorf("store name '%s' is longer than %d characters", name, maxStoreNameLabel)
	}
	if !storeNameRE.MatchString(name) {
		return fmt.Errorf("store name '%s' is invalid (allowed: a-z 0-9 -)", name)
	}
	return nil
}
