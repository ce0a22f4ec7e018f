package model

import "fmt"

type StoreType string

const (
	TypeWooCommerce StoreType = "woocommerce"
	TypeMedusa      StoreType = "medusa"
)

// ParseStoreType accepts only registered types.
func ParseStoreType(s string) (StoreType, error) {
	t := StoreType(s)
	if _, err := GetPlatform(t); err != nil {
		return "", fmt.Errorf("unsupported store type '%s' (supported: %v)", s, StoreTypes())
	}
	return t, nil
}

type StoreStatus string

const (
	StatusProvisioning StoreStatus = "PROVISIONING"
	StatusReady        StoreStatus = "READY"
	StatusFailed       StoreStatus = "FAILED"
	StatusDeleting     StoreStatus = "DELETING"
)

// Transient statuses are the ones the server is still working on.
func (s StoreStatus) Transient() bool {
	return s == StatusProvisioning || s == StatusDeleting
}

// Store is the client's view of one provisioned store instance. Values are
// replaced wholesale on every refresh and never mutated in place.
type Store struct {
	Id            string      `json:"id" yaml:"id"`
	Name          string      `json:"name" yaml:"name"`
	Type          StoreType   `json:"type" yaml:"type"`
	Status        StoreStatus `json:"status" yaml:"status"`
	Url           string      `json:"url,omitempty" yaml:"url,omitempty"`
	Namespace     string      `json:"namespace" yaml:"namespace"`
	CreatedAt     Timestamp   `json:"created_at" yaml:"created_at"`
	StatusMessage string      `json:"status_message,omitempty" yaml:"status_message,omitempty"`
}

func (s Store) Platform() Platform {
	return PlatformFor(s.Type)
}

// AdminURL is empty until the store has a url.
func (s Store) AdminURL() string {
	if s.Url == "" {
		return ""
	}
	return s.Url + s.Platform().AdminPath()
}

// FindStore returns the store with the given id from a snapshot.
func FindStore(stores []Store, id string) (Store, bool) {
	for _, s := range stores {
		if s.Id == id {
			return s, true
		}
	}
	return Store{}, false
}

// Platform describes per-store-type behaviour the client needs to know about.
type Platform interface {
	Label() string
	Type() StoreType
	AdminPath() string
	SupportsAdminCredentials() bool
	Dump() any
}

// Stats are the per-status counters shown above the store list.
type Stats struct {
	Total        int `json:"total" yaml:"total"`
	Ready        int `json:"ready" yaml:"ready"`
	Provisioning int `json:"provisioning" yaml:"provisioning"`
	Failed       int `json:"failed" yaml:"failed"`
	Deleting     int `json:"deleting" yaml:"deleting"`
}

func CountByStatus(stores []Store) Stats {
	st := Stats{Total: len(stores)}
	for _, s := range stores {
		switch s.Status {
		case StatusReady:
			st.Ready++
		case StatusProvisioning:
			st.Provisioning++
		case StatusFailed:
			st.Failed++
		case StatusDeleting:
			st.Deleting++
		}
	}
	return st
}
