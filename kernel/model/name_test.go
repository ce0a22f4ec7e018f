package model

import "testing"

func TestNormalizeStoreName(t *testing.T) {
	cases := map[string]string{
		"my-store":       "my-store",
		"My Store":       "mystore",
		"Shop_2024!":     "shop2024",
		"--ok--":         "--ok--",
		"ÜBER-shop":      "ber-shop",
		"":               "",
		"a.b.c":          "abc",
		"UPPER-and-1234": "upper-and-1234",
	}
	for in, want := range cases {
		if got := NormalizeStoreName(in); got != want {
			t.Errorf("NormalizeStoreName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeStoreName_Idempotent(t *testing.T) {
	inputs := []string{"my-store", "My Store!!", "x_y_z", "ÄÖÜ-42", "   spaced   out  "}
	for _, in := range inputs {
		once := NormalizeStoreName(in)
		twice := NormalizeStoreName(once)
		if once != twice {
			t.Errorf("normalization not idempotent for %q: %q then %q", in, once, twice)
		}
		if once != "" && ValidateStoreName(once) != nil {
			t.Errorf("normalized name %q should validate", once)
		}
	}
}

func TestValidateStoreName(t *testing.T) {
	if err := ValidateStoreName("my-store"); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
	for _, bad := range []string{"", "My-Store", "my_store", "my store", "store.example"} {
		if err := ValidateStoreName(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}
