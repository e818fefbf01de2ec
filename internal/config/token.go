package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

const tokenAccount = "api_token"

// GetAPIToken returns the localhost API bearer token. Resolution order:
// the ENGRAM_API_TOKEN environment variable, then the platform secret
// store. If neither has one, a token is generated and persisted so the
// daemon and its CLI clients agree on it.
func GetAPIToken(kc Keychain) (string, error) {
	if t := os.Getenv("ENGRAM_API_TOKEN"); t != "" {
		return t, nil
	}

	if t, err := kc.Get(keychainService, tokenAccount); err == nil && t != "" {
		return t, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating api token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := kc.Set(keychainService, tokenAccount, token); err != nil {
		return "", fmt.Errorf("storing api token: %w", err)
	}
	return token, nil
}
