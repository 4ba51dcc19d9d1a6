/*
Package randx provides functions for generating cryptographically secure random
identifiers used across the chat service.

It is primarily used to generate UUID attachment keys and random default display
names for newly registered accounts.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))
)

// AttachmentID generates a standard UUID v4 string to serve as a unique storage
// key component for an uploaded file.
func AttachmentID() string {
	return uuid.New().String()
}

// base62String generates a cryptographically random Base62 string of length n.
func base62String(n int) (string, error) {
	result := make([]byte, n)

	for i := 0; i < n; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %v", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// DisplayName generates a random display name with a "User_" prefix and
// 6 random Base62 characters, used when a new account omits one.
func DisplayName() (string, error) {
	suffix, err := base62String(6)
	if err != nil {
		return "", err
	}
	return "User_" + suffix, nil
}
