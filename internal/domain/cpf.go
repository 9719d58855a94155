package domain

import (
	"fmt"
	"strings"
)

// NormalizeCPF strips the usual "000.000.000-00" punctuation and surrounding spaces.
func NormalizeCPF(cpf string) string {
	cpf = strings.TrimSpace(cpf)
	return strings.NewReplacer(".", "", "-", "").Replace(cpf)
}

// ValidateCPF reports whether cpf (formatted or not) carries valid check digits.
// Sequences of a single repeated digit are rejected even though they checksum.
func ValidateCPF(cpf string) bool {
	cpf = NormalizeCPF(cpf)
	if len(cpf) != 11 {
		return false
	}

	digits := make([]int, 11)
	allSame := true
	for i, c := range cpf {
		if c < '0' || c > '9' {
			return false
		}
		digits[i] = int(c - '0')
		if digits[i] != digits[0] {
			allSame = false
		}
	}
	if allSame {
		return false
	}

	return digits[9] == cpfCheckDigit(digits[:9]) && digits[10] == cpfCheckDigit(digits[:10])
}

// cpfCheckDigit weights the digits from len+1 down to 2.
func cpfCheckDigit(digits []int) int {
	sum := 0
	weight := len(digits) + 1
	for _, d := range digits {
		sum += d * weight
		weight--
	}
	check := 11 - sum%11
	if check > 9 {
		return 0
	}
	return check
}

// FormatCPF renders an 11-digit CPF as XXX.XXX.XXX-XX.
func FormatCPF(cpf string) (string, error) {
	cpf = NormalizeCPF(cpf)
	if len(cpf) != 11 {
		return "", fmt.Errorf("CPF must have 11 digits, got %d", len(cpf))
	}
	return fmt.Sprintf("%s.%s.%s-%s", cpf[:3], cpf[3:6], cpf[6:9], cpf[9:]), nil
}
