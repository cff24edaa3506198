package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// RandString returns n characters of URL-safe random text.
func RandString(n int) string {
	if n <= 0 {
		return ""
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	s := base64.RawURLEncoding.EncodeToString(buf)
	return s[:n]
}

// GenerateTempPassword produces a throwaway credential for imported
// accounts without a password column. The fixed suffix keeps the
// value inside the password policy regardless of what RandString yields.
func GenerateTempPassword() string {
	return RandString(12) + "aA1!"
}
