package model

// WooCommercePlatform implements Platform for WordPress/WooCommerce stores
type WooCommercePlatform struct{}

func (w *WooCommercePlatform) Label() string {
	return "WooCommerce"
}

func (w *WooCommercePlatform) Type() StoreType {
	return TypeWooCommerce
}

func (w *WooCommercePlatform) AdminPath() string {
	return "/wp-admin"
}

// The chart provisions a wp-admin secret, so credentials can be fetched once READY.
func (w *WooCommercePlatform) SupportsAdminCredentials() bool {
	return true
}

func (w *WooCommercePlatform) Dump() any {
	return map[string]string{"type": string(TypeWooCommerce), "admin_path": w.AdminPath()}
}

func init() {
	RegisterPlatform(TypeWooCommerce, func() Platform {
		return &WooCommercePlatform{}
	})
}
