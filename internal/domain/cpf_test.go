package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCPF(t *testing.T) {
	cases := []struct {
		name string
		cpf  string
		want bool
	}{
		{"plain digits", "12345678909", true},
		{"formatted", "123.456.789-09", true},
		{"another valid", "98765432100", true},
		{"surrounding spaces", "  529.982.247-25 ", true},
		{"repeated digits", "111.111.111-11", false},
		{"repeated fives", "55555555555", false},
		{"wrong first check digit", "12345678919", false},
		{"wrong second check digit", "12345678900", false},
		{"too short", "1234567890", false},
		{"too long", "123456789090", false},
		{"letters", "1234567890a", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidateCPF(tc.cpf))
		})
	}
}

func TestFormatCPF(t *testing.T) {
	formatted, err := FormatCPF("12345678909")
	require.NoError(t, err)
	assert.Equal(t, "123.456.789-09", formatted)

	formatted, err = FormatCPF("123.456.789-09")
	require.NoError(t, err)
	assert.Equal(t, "123.456.789-09", formatted)

	_, err = FormatCPF("123")
	assert.Error(t, err)
}
