// Package collate implements the view collation order over json-like values:
// null < false < true < number < string < array < object < unknown.
package collate

import (
	"strings"
	"sync"

	textcollate "golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	collatorMu sync.Mutex
	collator   = textcollate.New(language.Und)
)

func (v Value) rank() int {
	switch v.kind {
	case Null:
		return 0
	case Bool:
		if v.b {
			return 2
		}
		return 1
	case Number:
		return 3
	case String:
		return 4
	case Array:
		return 5
	case Object:
		return 6
	default:
		return 7
	}
}

// Compare returns a negative number if a sorts before b, a positive number if a sorts after b and 0 if they are equal.
// When both values are arrays and exact is false, only the common prefix is compared. Nested arrays are always
// compared exactly: a shorter array with an equal prefix sorts first.
func Compare(a, b Value, exact bool) int {
	if a.kind == Array && b.kind == Array {
		return compareArrays(a.arr, b.arr, exact)
	}
	if a.kind == String && b.kind == String {
		return compareStrings(a.s, b.s)
	}
	if a.kind == Number && b.kind == Number {
		switch {
		case a.n < b.n:
			return -1
		case a.n > b.n:
			return 1
		default:
			return 0
		}
	}
	ra, rb := a.rank(), b.rank()
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		// same rank without a natural order (null, equal booleans, objects, unknown)
		return 0
	}
}

// Equal reports whether a and b are structurally equal under exact comparison
func Equal(a, b Value) bool {
	return Compare(a, b, true) == 0
}

func compareArrays(a, b []Value, exact bool) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i], true); c != 0 {
			return c
		}
	}
	if exact {
		switch {
		case len(a) < len(b):
			return -1
		case len(a) > len(b):
			return 1
		}
	}
	return 0
}

func compareStrings(a, b string) int {
	if a == b {
		return 0
	}
	collatorMu.Lock()
	c := collator.CompareString(a, b)
	collatorMu.Unlock()
	if c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// IndexOf returns the index of the first element of values exactly equal to v, or -1
func IndexOf(values []Value, v Value) int {
	for i, candidate := range values {
		if Compare(candidate, v, true) == 0 {
			return i
		}
	}
	return -1
}

// NormKey normalizes a key for reduce grouping. A group level of 0 collapses every key to null, -1 keeps the key
// as is and a positive level truncates array keys to that many elements.
func NormKey(key Value, groupLevel int) Value {
	if groupLevel == 0 {
		return Value{}
	}
	if key.kind != Array || groupLevel < 0 || groupLevel >= len(key.arr) {
		return key
	}
	return NewArray(key.arr[:groupLevel]...)
}
