// Package security implements bearer-token authentication for the
// ingest and admin endpoints. See spec.md §6 ("auth" configuration)
// and §4.6 step 1.
package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"ssw-logs-capture/pkg/errors"
	"ssw-logs-capture/pkg/types"
)

// AuthManager resolves a bearer token to a tenant identity.
type AuthManager struct {
	cfg types.AuthConfig
}

// NewAuthManager builds an AuthManager from the loaded auth
// configuration.
func NewAuthManager(cfg types.AuthConfig) *AuthManager {
	return &AuthManager{cfg: cfg}
}

// Authenticate extracts the bearer token from an HTTP request and
// resolves it to a tenant identity. Per spec.md §3, the tenant *is*
// the raw bearer token string — not any display name configured
// alongside it — so that two distinct tokens never collapse into one
// WAL directory, rate bucket, or masking-override tenant even if an
// operator reuses the same `name` label across `api_keys` entries.
// Returns 403 semantics when the header is absent and 401 semantics
// when the token is unknown or inactive, per spec.md §6.
func (am *AuthManager) Authenticate(req *http.Request) (tenant string, err error) {
	token := extractBearer(req)
	if token == "" {
		return "", &errors.GatewayError{Code: "missing_auth", Message: "missing Authorization: Bearer <token> header"}
	}

	key, ok := am.lookup(token)
	if !ok || !key.Active {
		return "", errors.Auth("unknown or inactive token")
	}

	return token, nil
}

// AuthenticateAdmin validates the admin token for the force-flush
// endpoint (spec.md §6, "Admin force-flush").
func (am *AuthManager) AuthenticateAdmin(req *http.Request) error {
	token := extractBearer(req)
	if token == "" || am.cfg.AdminToken == "" {
		return errors.Auth("missing admin token")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(am.cfg.AdminToken)) != 1 {
		return errors.Auth("invalid admin token")
	}
	return nil
}

// lookup performs a constant-time comparison against every configured
// key so token length/content is not leaked through response timing.
func (am *AuthManager) lookup(token string) (types.APIKey, bool) {
	for k, v := range am.cfg.APIKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(token)) == 1 {
			return v, true
		}
	}
	return types.APIKey{}, false
}

func extractBearer(req *http.Request) string {
	auth := req.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
