package mutate

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// IllegalKeyChars lists the characters a mapping key may not contain.
// Every one of them has a meaning in path syntax.
const IllegalKeyChars = `/*.,()[]|"'`

// KeyGenerator produces keys for creates that do not name one.
type KeyGenerator func() string

// GenerateKey returns the millisecond clock and two random 31-bit numbers,
// hex encoded and joined with underscores, e.g. "18f3c2a1b7e_5a1f3c2_3b9d0e1".
func GenerateKey() string {
	return fmt.Sprintf("%x_%x_%x",
		time.Now().UnixMilli(),
		rand.Int32N(2147483647),
		rand.Int32N(2147483647),
	)
}

// LegalKey reports whether k may be used as a mapping key.
func LegalKey(k string) bool {
	return k != "" && !strings.ContainsAny(k, IllegalKeyChars)
}
