// Package token generates opaque alphanumeric identifiers for drafts and
// bookings. Ticket IDs are user-visible, so they must be unguessable.
package token

import (
	"crypto/rand"
	"math/big"
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultLen matches the width of the id columns in the bookings schema.
const DefaultLen = 16

// New returns a random identifier of n characters drawn from [a-zA-Z0-9].
func New(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err) // crypto/rand failure is not recoverable
		}
		b[i] = alphabet[v.Int64()]
	}
	return string(b)
}
