package model

import (
	"fmt"
	"sort"
	"sync"
)

// PlatformFactory creates a new instance of a Platform
type PlatformFactory func() Platform

var (
	registryMu sync.RWMutex
	registry   = make(map[StoreType]PlatformFactory)
)

// RegisterPlatform registers a factory for a given store type.
// e.g. RegisterPlatform(TypeWooCommerce, func() Platform { return &WooCommercePlatform{} })
func RegisterPlatform(storeType StoreType, factory PlatformFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[storeType]; dup {
		panic("RegisterPlatform called twice for " + string(storeType))
	}
	registry[storeType] = factory
}

// GetPlatform creates a new instance of the platform registered for storeType.
func GetPlatform(storeType StoreType) (Platform, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[storeType]
	if !ok {
		return nil, fmt.Errorf("store type '%s' not found in registry", storeType)
	}
	return factory(), nil
}

// PlatformFor never fails; unregistered types get a GenericPlatform so that
// stores of types this client does not know about still render.
func PlatformFor(storeType StoreType) Platform {
	if p, err := GetPlatform(storeType); err == nil {
		return p
	}
	return &GenericPlatform{StoreType: storeType}
}

// StoreTypes lists the registered store types in a stable order.
func StoreTypes() []StoreType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]StoreType, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
