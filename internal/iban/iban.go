package iban

import (
	"fmt"
	"strings"
)

const (
	czechCountry = "CZ"
	// czechCountryDigits is "CZ" converted to digits (C=12, Z=35) followed by "00".
	czechCountryDigits = "123500"
	accountLength      = 16
	bankCodeLength     = 4
)

// Calculate returns the Czech IBAN for a domestic account number and bank code,
// e.g. ("1111", "2222222222") -> "CZ4911110000002222222222".
//
// Without a bank code there is nothing to compute from, so accountID is
// returned unchanged. Empty strings stand for absent values.
func Calculate(bankCode, accountID string) string {
	if bankCode == "" {
		return accountID
	}

	number := leftPad(strings.ReplaceAll(accountID, "-", ""), accountLength)
	code := leftPad(bankCode, bankCodeLength)
	check := 98 - mod97(code+number+czechCountryDigits)

	return fmt.Sprintf("%s%02d%s%s", czechCountry, check, code, number)
}

// mod97 computes the ISO 7064 MOD 97-10 remainder digit by digit so that
// arbitrarily long inputs never overflow. Non-digits count as zero.
func mod97(digits string) int {
	m := 0
	for _, r := range digits {
		d := 0
		if r >= '0' && r <= '9' {
			d = int(r - '0')
		}
		m = (m*10 + d) % 97
	}
	return m
}

// leftPad pads s with zeros to n characters, keeping the rightmost n if longer.
func leftPad(s string, n int) string {
	if len(s) >= n {
		return s[len(s)-n:]
	}
	return strings.Repeat("0", n-len(s)) + s
}
