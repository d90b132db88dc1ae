package pii

// Checksum validation for digit-sequence categories. Matches that fail
// their checksum are discarded as coincidental digit runs.

// luhnValid reports whether digits passes the Luhn check. digits must be
// ASCII digits only.
func luhnValid(digits string) bool {
	if len(digits) == 0 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

var (
	fnrWeightsK1 = [9]int{3, 7, 6, 1, 8, 9, 4, 5, 2}
	fnrWeightsK2 = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}
)

// fodselsnummerValid reports whether an 11-digit Norwegian national ID has
// valid control digits (double mod-11 over positional weights).
func fodselsnummerValid(digits string) bool {
	if len(digits) != 11 {
		return false
	}
	var d [11]int
	for i := 0; i < 11; i++ {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d[i] = int(c - '0')
	}

	sum := 0
	for i, w := range fnrWeightsK1 {
		sum += d[i] * w
	}
	k1 := 11 - sum%11
	if k1 == 11 {
		k1 = 0
	}
	if k1 == 10 || k1 != d[9] {
		return false
	}

	sum = 0
	for i, w := range fnrWeightsK2 {
		sum += d[i] * w
	}
	k2 := 11 - sum%11
	if k2 == 11 {
		k2 = 0
	}
	return k2 != 10 && k2 == d[10]
}
