package model

import "fmt"

const passwordMask = "********"

// AdminCredentials are fetched on demand and must never be cached or
// persisted. Rendering helpers mask the password unless asked not to.
type AdminCredentials struct {
	StoreUrl      string `json:"store_url" yaml:"store_url"`
	AdminUrl      string `json:"admin_url" yaml:"admin_url"`
	AdminUser     string `json:"admin_user" yaml:"admin_user"`
	AdminPassword string `json:"admin_password" yaml:"admin_password"`
	AdminEmail    string `json:"admin_email" yaml:"admin_email"`
}

// Masked returns a copy safe to render.
func (c AdminCredentials) Masked() AdminCredentials {
	if c.AdminPassword != "" {
		c.AdminPassword = passwordMask
	}
	return c
}

// Render picks the masked or revealed form.
func (c AdminCredentials) Render(reveal bool) AdminCredentials {
	if reveal {
		return c
	}
	return c.Masked()
}

// String never includes the password, so %v in a log line is safe.
func (c AdminCredentials) String() string {
	return fmt.Sprintf("admin %s <%s> at %s", c.AdminUser, c.AdminEmail, c.AdminUrl)
}

// Zero overwrites every field.
func (c *AdminCredentials) Zero() {
	*c = AdminCredentials{}
}
