package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOnlyDigits(t *testing.T) {
	assert.Equal(t, "12345678909", OnlyDigits("123.456.789-09"))
	assert.Equal(t, "", OnlyDigits("abc"))
	assert.Equal(t, "12", OnlyDigits(" 1a2 "))
}

func TestIsValidNationalID(t *testing.T) {
	cases := map[string]bool{
		"123.456.789-09": true,
		"12345678909":    true,
		"529.982.247-25": true,
		"12345678900":    false,
		"111.111.111-11": false,
		"00000000000":    false,
		"1234567890":     false,
		"":               false,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsValidNationalID(in), in)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "12345678909", Normalize("123.456.789-09"))
	// invalid checksum still normalizes to digits
	assert.Equal(t, "12345678900", Normalize("123.456.789-00"))
	assert.Equal(t, "PASSPORT-AB12", Normalize("  passport-ab12  "))
	assert.Equal(t, "RG 12.345", Normalize("rg 12.345"))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"", "   ", "123.456.789-09", "  passport-ab12  ", "a1b2c3d4e5f6g7h8i9j0k1",
		"\t12345678909\n", "ß-doc", "1234567890123", "x",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}
