package voucher

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestLookupIsCaseInsensitive(t *testing.T) {
	reg := DefaultRegistry()
	for _, code := range []string{"SAVE10", "save10", "Save10"} {
		promo, err := reg.Lookup(code)
		if err != nil {
			t.Fatalf("expected %q to match, got %v", code, err)
		}
		if !promo.Rate.Equal(decimal.RequireFromString("0.1")) {
			t.Fatalf("expected rate 0.1, got %s", promo.Rate)
		}
	}
}

func TestLookupRejectsUnknownAndPaddedCodes(t *testing.T) {
	reg := DefaultRegistry()
	for _, code := range []string{"", "SAVE20", " save10", "save10 "} {
		if _, err := reg.Lookup(code); err == nil {
			t.Fatalf("expected %q to be rejected", code)
		}
	}
}

func TestDiscount(t *testing.T) {
	promo := Promo{Code: "SAVE10", Rate: decimal.RequireFromString("0.10")}
	got := promo.Discount(decimal.RequireFromString("729.97"))
	if !got.Equal(decimal.RequireFromString("72.997")) {
		t.Fatalf("expected 72.997 discount, got %s", got)
	}
}

func TestNewRegistryValidates(t *testing.T) {
	if _, err := NewRegistry(Promo{Code: "BIG", Rate: decimal.RequireFromString("1.2")}); err == nil {
		t.Fatal("expected rate above 1 to be rejected")
	}
	if _, err := NewRegistry(Promo{Code: "a", Rate: decimal.Zero}, Promo{Code: "A", Rate: decimal.Zero}); err == nil {
		t.Fatal("expected duplicate code to be rejected")
	}
}

func TestParseCodes(t *testing.T) {
	promos, err := ParseCodes("SAVE10:0.10, HALF:0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(promos) != 2 || promos[1].Code != "HALF" {
		t.Fatalf("unexpected promos %+v", promos)
	}
	if _, err := ParseCodes("SAVE10"); err == nil {
		t.Fatal("expected missing rate to fail")
	}
	if _, err := ParseCodes("SAVE10:ten"); err == nil {
		t.Fatal("expected malformed rate to fail")
	}
}
