package model

// MedusaPlatform implements Platform for Medusa headless stores
type MedusaPlatform struct {
	APIHostPrefix string
}

func (m *MedusaPlatform) Label() string {
	return "Medusa"
}

func (m *MedusaPlatform) Type() StoreType {
	return TypeMedusa
}

func (m *MedusaPlatform) AdminPath() string {
	return "/app"
}

func (m *MedusaPlatform) SupportsAdminCredentials() bool {
	return false
}

func (m *MedusaPlatform) Dump() any {
	return map[string]string{"type": string(TypeMedusa), "admin_path": m.AdminPath(), "api_host_prefix": m.APIHostPrefix}
}

func init() {
	RegisterPlatform(TypeMedusa, func() Platform {
		return &MedusaPlatform{APIHostPrefix: "api-"}
	})
}
