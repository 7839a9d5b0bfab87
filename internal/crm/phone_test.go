package crm

import (
	"slices"
	"testing"
)

func TestDigitsOnly(t *testing.T) {
	if got := DigitsOnly("+1 (555) 123-4567"); got != "15551234567" {
		t.Fatalf("DigitsOnly = %q", got)
	}
	if got := DigitsOnly("no digits"); got != "" {
		t.Fatalf("DigitsOnly = %q", got)
	}
}

func TestNationalNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+15551234567", "5551234567"},
		{"15551234567", "5551234567"},
		{"5551234567", "5551234567"},
		{"(555) 123-4567", "5551234567"},
		{"1234", "1234"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NationalNumber(tc.in); got != tc.want {
			t.Errorf("NationalNumber(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSearchSeed(t *testing.T) {
	// Middle six digits of the national number: area code and the final
	// digit are the parts CRMs most often reformat.
	if got := SearchSeed("+1 (555) 123-4567"); got != "123456" {
		t.Fatalf("SearchSeed = %q", got)
	}
	if got := SearchSeed("12345"); got != "12345" {
		t.Fatalf("short numbers pass through whole, got %q", got)
	}
	// Exactly six digits: too short to window, passes through whole.
	if got := SearchSeed("123456"); got != "123456" {
		t.Fatalf("six-digit number = %q, want pass-through", got)
	}
	// Seven digits is the shortest number the window applies to.
	if got := SearchSeed("1234567"); got != "123456" {
		t.Fatalf("seven-digit number = %q, want %q", got, "123456")
	}
}

func TestSameNationalNumber(t *testing.T) {
	if !SameNationalNumber("+15551234567", "(555) 123-4567") {
		t.Fatal("formats of the same number must match")
	}
	if SameNationalNumber("+15551234567", "+15551234568") {
		t.Fatal("different numbers must not match")
	}
	if SameNationalNumber("1234", "1234") {
		t.Fatal("numbers shorter than ten digits never match")
	}
}

func TestCandidateFormats(t *testing.T) {
	got := CandidateFormats("+1 (555) 123-4567")
	for _, want := range []string{"5551234567", "15551234567", "+15551234567", "(555) 123-4567"} {
		if !slices.Contains(got, want) {
			t.Errorf("CandidateFormats missing %q (got %v)", want, got)
		}
	}
}
