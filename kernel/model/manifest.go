package model

// StoreSpec is one desired store in an apply manifest.
type StoreSpec struct {
	Name string    `yaml:"name"`
	Type StoreType `yaml:"type"`
}

// Manifest is the declarative list of stores consumed by `storelab apply`.
type Manifest struct {
	Defaults struct {
		Type StoreType `yaml:"type"`
	} `yaml:"defaults"`
	Stores []StoreSpec `yaml:"stores"`
}
