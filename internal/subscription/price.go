package subscription

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Price is an amount in cents. It encodes as a JSON number with exactly two
// fraction digits.
type Price int64

// Cents returns the price as an integer number of cents.
func (p Price) Cents() int64 { return int64(p) }

// String formats the price as a decimal with two fraction digits, e.g. "9.99".
func (p Price) String() string {
	n := int64(p)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	return fmt.Sprintf("%s%d.%02d", sign, n/100, n%100)
}

// MarshalJSON implements json.Marshaler.
func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("decoding price: %w", err)
		}
	}
	v, err := ParsePrice(text)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePrice parses a decimal amount such as "9.99", "10", ".5" or "1.5e1".
// Digits beyond the second fraction digit are rounded half away from zero.
// Exponent notation is expanded digit by digit, so "9.995e0" and "9.995"
// round the same way.
func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("price is empty")
	}

	neg := false
	digits := s
	switch digits[0] {
	case '-':
		neg = true
		digits = digits[1:]
	case '+':
		digits = digits[1:]
	}
	mantissa, expText, hasExp := strings.Cut(strings.ToLower(digits), "e")
	whole, frac, _ := strings.Cut(mantissa, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	if hasExp {
		exp, err := strconv.Atoi(expText)
		if err != nil {
			return 0, fmt.Errorf("invalid price %q", s)
		}
		if whole, frac, err = shiftPoint(whole, frac, exp); err != nil {
			return 0, fmt.Errorf("price %q out of range", s)
		}
	}
	whole = strings.TrimLeft(whole, "0")
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > math.MaxInt64/100-1 {
		return 0, fmt.Errorf("price %q out of range", s)
	}

	padded := frac + "00"
	c, _ := strconv.ParseInt(padded[:2], 10, 64)
	cents := w*100 + c
	if len(frac) > 2 && frac[2] >= '5' {
		cents++
	}
	if neg {
		cents = -cents
	}
	return Price(cents), nil
}

// maxPriceDigits bounds the whole part after an exponent shift; anything
// longer cannot fit in int64 cents.
const maxPriceDigits = 19

// shiftPoint moves the decimal point of whole.frac by exp places.
func shiftPoint(whole, frac string, exp int) (string, string, error) {
	all := whole + frac
	significant := strings.TrimLeft(all, "0")
	if significant == "" {
		return "0", "", nil
	}
	if exp > maxPriceDigits+len(frac) {
		return "", "", fmt.Errorf("exponent %d too large", exp)
	}
	point := len(whole) + exp
	switch {
	case point > len(all):
		zeros := point - len(all)
		if len(significant)+zeros > maxPriceDigits {
			return "", "", fmt.Errorf("exponent %d too large", exp)
		}
		return all + strings.Repeat("0", zeros), "", nil
	case point < 0:
		// Only the first three fraction digits matter for rounding.
		if -point >= 3 {
			return "0", "", nil
		}
		return "0", strings.Repeat("0", -point) + all, nil
	default:
		return all[:point], all[point:], nil
	}
}
