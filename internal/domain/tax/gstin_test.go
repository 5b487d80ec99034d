package tax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateGSTIN_Valid(t *testing.T) {
	for _, g := range []string{
		"27AAPFU0939F1ZV",
		"29ABCDE1234F1ZW",
		"29AAGCB7383J1Z4",
		"27AABCU9603R1ZN",
		"33AAACH7409R1Z8",
		"07AAACR5055K1Z9",
	} {
		assert.NoError(t, ValidateGSTIN(g), g)
	}
}

func TestValidateGSTIN_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad checksum":  "27AAPFU0939F1ZA",
		"short":         "27AAPFU0939F1Z",
		"lowercase":     "27aapfu0939f1zv",
		"missing Z":     "27AAPFU0939F1YV",
		"unknown state": "99AAPFU0939F1ZV",
		"digit in PAN":  "271APFU0939F1ZV",
		"empty":         "",
	}
	for name, g := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, ValidateGSTIN(g))
		})
	}
}

func TestGSTINChecksum(t *testing.T) {
	c, err := GSTINChecksum("27AAACR5055K1Z")
	require.NoError(t, err)
	assert.Equal(t, byte('7'), c)
}

func TestNormalizeGSTIN(t *testing.T) {
	assert.Equal(t, "27AAPFU0939F1ZV", NormalizeGSTIN("  27aapfu0939f1zv "))
}
