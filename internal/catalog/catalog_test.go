package catalog

import "testing"

func TestParseSelector(t *testing.T) {
	tests := []struct {
		raw  string
		want Selector
	}{
		{"", SelectAll},
		{"all", SelectAll},
		{"packages", Selector(KindPackages)},
		{"  Guides ", Selector(KindGuides)},
		{"agencies", Selector(KindAgencies)},
		{"hotels", SelectAll},
	}
	for _, tt := range tests {
		if got := ParseSelector(tt.raw); got != tt.want {
			t.Errorf("ParseSelector(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestSelectorKinds(t *testing.T) {
	if got := SelectAll.Kinds(); len(got) != 3 {
		t.Fatalf("all selector kinds = %v", got)
	}
	got := Selector(KindGuides).Kinds()
	if len(got) != 1 || got[0] != KindGuides {
		t.Errorf("guides selector kinds = %v", got)
	}
}

func TestEligibility(t *testing.T) {
	verified := AgencyRef{ID: 1, Name: "Summit", Verified: true}
	unverified := AgencyRef{ID: 2, Name: "Shady"}

	tests := []struct {
		name string
		item Item
		want bool
	}{
		{"active package verified agency", &Package{IsActive: true, Agency: verified}, true},
		{"inactive package", &Package{IsActive: false, Agency: verified}, false},
		{"package unverified agency", &Package{IsActive: true, Agency: unverified}, false},
		{"available guide", &Guide{IsAvailable: true, Agency: verified}, true},
		{"unavailable guide", &Guide{IsAvailable: false, Agency: verified}, false},
		{"guide unverified agency", &Guide{IsAvailable: true, Agency: unverified}, false},
		{"verified agency", &Agency{IsVerified: true}, true},
		{"unverified agency", &Agency{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.Eligible(); got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAgencyEstablishedYearNull(t *testing.T) {
	a := &Agency{}
	if _, ok := a.Number(FieldEstablished); ok {
		t.Error("expected null established year")
	}
	year := 2001
	a.EstablishedYear = &year
	v, ok := a.Number(FieldEstablished)
	if !ok || v != 2001 {
		t.Errorf("Number(established) = %v, %v", v, ok)
	}
}
