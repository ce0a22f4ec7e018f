package model

import (
	"testing"
)

func TestGetPlatform_WooCommerce(t *testing.T) {
	p, err := GetPlatform(TypeWooCommerce)
	if err != nil {
		t.Fatalf("expected woocommerce to be registered, got error: %v", err)
	}
	if p.Type() != TypeWooCommerce {
		t.Errorf("expected type 'woocommerce', got '%s'", p.Type())
	}
	if !p.SupportsAdminCredentials() {
		t.Error("woocommerce should support admin credentials")
	}
}

func TestGetPlatform_Medusa(t *testing.T) {
	p, err := GetPlatform(TypeMedusa)
	if err != nil {
		t.Fatalf("expected medusa to be registered, got error: %v", err)
	}
	if p.SupportsAdminCredentials() {
		t.Error("medusa should not support admin credentials")
	}
}

func TestGetPlatform_NotFound(t *testing.T) {
	_, err := GetPlatform("shopify")
	if err == nil {
		t.Fatal("expected error for unregistered store type")
	}
}

func TestPlatformFor_FallsBackToGeneric(t *testing.T) {
	p := PlatformFor("shopify")
	if _, ok := p.(*GenericPlatform); !ok {
		t.Fatalf("expected GenericPlatform, got %T", p)
	}
	if p.Label() != "shopify" {
		t.Errorf("expected label 'shopify', got '%s'", p.Label())
	}
}

func TestStoreTypes_Sorted(t *testing.T) {
	types := StoreTypes()
	if len(types) != 2 || types[0] != TypeMedusa || types[1] != TypeWooCommerce {
		t.Errorf("unexpected store types: %v", types)
	}
}

func TestParseStoreType(t *testing.T) {
	if _, err := ParseStoreType("woocommerce"); err != nil {
		t.Errorf("woocommerce should parse: %v", err)
	}
	if _, err := ParseStoreType("WooCommerce"); err == nil {
		t.Error("store types are case sensitive on the wire")
	}
}

func TestRegisterPlatform_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	RegisterPlatform(TypeMedusa, func() Platform { return &MedusaPlatform{} })
}
