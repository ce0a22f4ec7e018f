package model

// GenericPlatform stands in for store types the server reports but this
// client has no registration for.
type GenericPlatform struct {
	StoreType StoreType `yaml:"type"`
}

func (g *GenericPlatform) Label() string {
	return string(g.StoreType)
}

func (g *GenericPlatform) Type() StoreType {
	return g.StoreType
}

func (g *GenericPlatform) AdminPath() string {
	return ""
}

func (g *GenericPlatform) SupportsAdminCredentials() bool {
	return false
}

func (g *GenericPlatform) Dump() any {
	return g
}
