package crm

import "strings"

// Phone matching is format-tolerant: providers store numbers however users
// typed them, so all comparison happens on the last 10 digits of the
// national number.

// DigitsOnly strips everything but 0-9.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NationalNumber returns the last 10 digits, or everything when the number
// is shorter than 10 digits.
func NationalNumber(s string) string {
	d := DigitsOnly(s)
	if len(d) > 10 {
		return d[len(d)-10:]
	}
	return d
}

// SearchSeed returns a 6-digit substring used to seed provider free-text
// search. Free-text engines tokenize formatted numbers, so a shorter seed
// finds candidates that a full-number query would miss; the caller
// post-filters with SameNationalNumber.
func SearchSeed(s string) string {
	n := NationalNumber(s)
	if len(n) < 7 {
		return n
	}
	// Middle six digits: drop the area code and the final digit, both of
	// which vary the most across CRM formattings and typos.
	return n[len(n)-7 : len(n)-1]
}

// SameNationalNumber reports whether two phone-like strings refer to the
// same 10-digit national number.
func SameNationalNumber(a, b string) bool {
	na, nb := NationalNumber(a), NationalNumber(b)
	return na != "" && len(na) == 10 && na == nb
}

// CandidateFormats returns the representations tried against provider
// "contains" filters: bare national, 1-prefixed, E.164, and the common
// punctuated form.
func CandidateFormats(s string) []string {
	n := NationalNumber(s)
	if len(n) != 10 {
		if n == "" {
			return nil
		}
		return []string{n}
	}
	return []string{
		n,
		"1" + n,
		"+1" + n,
		"(" + n[:3] + ") " + n[3:6] + "-" + n[6:],
	}
}
