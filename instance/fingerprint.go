package instance

import (
	"unicode/utf16"

	"github.com/syssam/featgen/solver"
)

// Fingerprint returns the structural digest used to detect duplicate
// instances. An instance with children hashes to 37 times the product of
// its children's fingerprints, wrapping on overflow. A leaf hashes its
// value: integers to themselves, booleans to 1231 or 1237, strings with the
// 31-polynomial string hash, references to the hash of the referenced type
// name and leaves without a value to the hash of their own type name.
//
// A child fingerprinting to zero zeroes the whole product.
func Fingerprint(inst *solver.Instance) int64 {
	if inst.HasChildren() {
		h := int64(37)
		for _, c := range inst.Children {
			h *= Fingerprint(c)
		}
		return h
	}
	switch v := inst.Ref.(type) {
	case nil:
		return int64(stringHash(inst.Type.Name))
	case int:
		return int64(v)
	case bool:
		if v {
			return 1231
		}
		return 1237
	case string:
		return int64(stringHash(v))
	case *solver.Instance:
		return int64(stringHash(v.Type.Name))
	}
	return 0
}

// stringHash is s[0]*31^(n-1) + ... + s[n-1] over the UTF-16 code units of
// s, in 32-bit arithmetic.
func stringHash(s string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(u)
	}
	return h
}
