package checkout

import (
	"errors"
	"strings"
)

var ErrInvalidPhone = errors.New("checkout: invalid phone")

// NormalizePhone приводит номер к каноническому виду с кодом страны:
// "89161234567" и "9161234567" становятся "+79161234567".
// Номера короче 10 цифр отклоняются.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	d := digits.String()
	switch {
	case len(d) == 11 && d[0] == '8':
		d = "7" + d[1:]
	case len(d) == 10:
		d = "7" + d
	case len(d) < 10:
		return "", ErrInvalidPhone
	}

	return "+" + d, nil
}
