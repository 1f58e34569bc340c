// Package fields decodes the fixed-width numeric field conventions shared
// by the aircraft reconnaissance code forms: missing-value slash runs,
// per-field numeric sentinels, and the dropped-leading-1 pressure
// encoding.
package fields

import (
	"strconv"
	"strings"
)

// Missing reports whether a raw group is a missing-value slash run.
func Missing(s string) bool {
	return s != "" && strings.Count(s, "/") == len(s)
}

// Int decodes a digit group, or nil when it is a slash run.
func Int(s string) *int {
	if Missing(s) {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// IntSentinel is Int with an additional numeric missing-value sentinel
// (e.g. the literal 999 used by wind groups).
func IntSentinel(s, sentinel string) *int {
	if s == sentinel {
		return nil
	}
	return Int(s)
}

// Tenths decodes a digit group scaled by 0.1, or nil when missing.
func Tenths(s string) *float64 {
	n := Int(s)
	if n == nil {
		return nil
	}
	v := float64(*n) / 10
	return &v
}

// SignedTenths decodes a +/- prefixed group scaled by 0.1 (the HDOB
// temperature encoding), or nil when missing.
func SignedTenths(s string) *float64 {
	if Missing(s) || len(s) < 2 {
		return nil
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil {
		return nil
	}
	v := float64(n) / 10
	if s[0] == '-' {
		v = -v
	}
	return &v
}

// SignDegrees decodes a 3-digit group whose first digit carries the sign
// (0 positive, 1 negative) over a 2-digit whole-degree value, the RECCO
// temperature encoding. Nil when missing.
func SignDegrees(s string) *int {
	if Missing(s) || len(s) != 3 {
		return nil
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil {
		return nil
	}
	if s[0] == '1' {
		n = -n
	}
	return &n
}

// Pressure decodes a 4-digit pressure group in tenths of hPa where the
// leading 1 is dropped above 1000 hPa: a first digit of 3 or less gets
// the leading 1 reinstated before scaling. "0042" is 1004.2, "9983" is
// 998.3. Nil when missing.
func Pressure(s string) *float64 {
	if Missing(s) || len(s) != 4 {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	v := float64(n) / 10
	if s[0] <= '3' {
		v += 1000
	}
	return &v
}

// DegreesMinutes decodes a degree+minute group (DDMM or DDDMM) into
// decimal degrees. Nil when missing.
func DegreesMinutes(s string) *float64 {
	if Missing(s) {
		return nil
	}
	if len(s) != 4 && len(s) != 5 {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	deg := n / 100
	min := n % 100
	if min > 59 {
		return nil
	}
	v := float64(deg) + float64(min)/60
	return &v
}
