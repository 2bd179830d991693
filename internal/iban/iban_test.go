package iban

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		bankCode, accountID string
		want                string
	}{
		{"1111", "2222222222", "CZ4911110000002222222222"},
		{"2010", "2700968855", "CZ7120100000002700968855"},
		{"2010", "2400222233", "CZ9620100000002400222233"},
		{"0800", "19-2000145399", "CZ6508000000192000145399"},
		{"300", "123456789", "CZ6203000000000123456789"},
		{"2010", "1000000001", "CZ0320100000001000000001"},
	}
	for _, tt := range tests {
		got := Calculate(tt.bankCode, tt.accountID)
		assert.Equal(t, tt.want, got, "Calculate(%q, %q)", tt.bankCode, tt.accountID)
	}
}

func TestCalculate_NoBankCode(t *testing.T) {
	assert.Equal(t, "2222222222", Calculate("", "2222222222"))
	assert.Equal(t, "", Calculate("", ""))
}

func TestCalculate_Deterministic(t *testing.T) {
	first := Calculate("2010", "2700968855")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Calculate("2010", "2700968855"))
	}
}

func TestCalculate_ValidChecksum(t *testing.T) {
	// Moving "CZkk" to the end and converting letters must give remainder 1.
	got := Calculate("2010", "2700968855")
	rearranged := got[4:] + czechCountryDigits[:4] + got[2:4]
	assert.Equal(t, 1, mod97(rearranged))
}

func TestLeftPad(t *testing.T) {
	assert.Equal(t, "0042", leftPad("42", 4))
	assert.Equal(t, "1234", leftPad("1234", 4))
	assert.Equal(t, "2345", leftPad("12345", 4))
}
