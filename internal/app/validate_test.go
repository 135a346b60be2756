package app_test

import (
	"testing"

	"biz_dashboard/internal/app"
	"biz_dashboard/internal/domain"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name, location string
		wantName       domain.FieldCode
		wantLocation   domain.FieldCode
	}{
		{"Joe's Cafe", "Austin", "", ""},
		{"", "Austin", domain.Required, ""},
		{"   ", "Austin", domain.Required, ""},
		{"J", "Austin", domain.TooShort, ""},
		{"  J  ", "Austin", domain.TooShort, ""},
		{"Jo", "NY", "", ""},
		{"Joe's Cafe", "", "", domain.Required},
		{"Joe's Cafe", "\tA\n", "", domain.TooShort},
		{"", "", domain.Required, domain.Required},
		{"é", "Zürich", domain.TooShort, ""},
		{"日本", "東京", "", ""},
		// length is counted in characters, so one emoji is still too short
		{"😀", "Austin", domain.TooShort, ""},
		{"😀😀", "Austin", "", ""},
	}
	for _, tc := range cases {
		errs := app.Validate(tc.name, tc.location)
		if got := errs[domain.FieldName].Code; got != tc.wantName {
			t.Errorf("Validate(%q, %q) name: got %q want %q", tc.name, tc.location, got, tc.wantName)
		}
		if got := errs[domain.FieldLocation].Code; got != tc.wantLocation {
			t.Errorf("Validate(%q, %q) location: got %q want %q", tc.name, tc.location, got, tc.wantLocation)
		}
		if errs.Valid() != (tc.wantName == "" && tc.wantLocation == "") {
			t.Errorf("Validate(%q, %q) valid mismatch: %+v", tc.name, tc.location, errs)
		}
	}
}

func TestValidate_Messages(t *testing.T) {
	errs := app.Validate("", "A")
	if m := errs.Message(domain.FieldName); m != "Business name is required" {
		t.Fatalf("name message: %q", m)
	}
	if m := errs.Message(domain.FieldLocation); m != "Location must be at least 2 characters" {
		t.Fatalf("location message: %q", m)
	}
}
