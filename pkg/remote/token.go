package remote

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenFile holds a saved authentication token. Session establishment
// is handled outside the engine; the engine only needs the bearer
// token and its expiry to classify staleness.
type TokenFile struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Server    string    `json:"server"`
	Username  string    `json:"username"`
}

// IsExpired returns true if the token has expired (with optional margin).
// When ExpiresAt is unset, the token's own exp claim is consulted.
func (t *TokenFile) IsExpired(margin time.Duration) bool {
	expiry := t.ExpiresAt
	if expiry.IsZero() {
		e, ok := tokenExpiry(t.Token)
		if !ok {
			return false
		}
		expiry = e
	}
	return time.Now().Add(margin).After(expiry)
}

// tokenExpiry extracts the exp claim from a JWT bearer token. The
// signature is not verified; the client holds no signing key and only
// needs the expiry for staleness checks.
func tokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenFilePath returns the token file location under stateDir.
func TokenFilePath(stateDir string) string {
	return filepath.Join(stateDir, "token.json")
}

// SaveToken saves a token file under stateDir.
func SaveToken(stateDir string, tf *TokenFile) error {
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(TokenFilePath(stateDir), data, 0600)
}

// LoadToken loads a token file from stateDir.
func LoadToken(stateDir string) (*TokenFile, error) {
	data, err := os.ReadFile(TokenFilePath(stateDir))
	if err != nil {
		return nil, err
	}
	var tf TokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, err
	}
	return &tf, nil
}

// DeleteToken removes the saved token file.
func DeleteToken(stateDir string) error {
	err := os.Remove(TokenFilePath(stateDir))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
