//go:build ignore

package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
)

// Prints a fresh value for CRON_SECRET.
func main() {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read random bytes: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(base64.RawURLEncoding.EncodeToString(buf))
}
