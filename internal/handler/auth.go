package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/xenking/order-fulfillment/internal/domain/auth"
)

// Auth authenticates requests via HMAC-SHA256 hashed API keys and attaches
// the resolved identity to the request context.
type Auth struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewAuth creates the authentication middleware with the given API key
// repository and HMAC pepper.
func NewAuth(apikeys auth.Repository, pepper []byte) *Auth {
	return &Auth{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// HashKey computes the HMAC-SHA256 hex digest of a raw API key. The same
// function seeds key hashes at provisioning time.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// extractKey pulls the raw API key from the request: an Authorization Bearer
// token, or the api_key header.
func extractKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return token
		}
	}
	return r.Header.Get("api_key")
}

// Authenticate validates the request's API key and stores the caller's
// identity in the context. Lookup failure and hash mismatch produce the
// same response so keys cannot be probed.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		mac := hmac.New(sha256.New, a.pepper)
		mac.Write([]byte(key))
		sum := mac.Sum(nil)

		info, err := a.apikeys.FindByHash(r.Context(), hex.EncodeToString(sum))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}

		// Constant-time re-compare against the stored hash guards against a
		// repository returning a stale or wrong row.
		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(sum, stored) != 1 {
			writeError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}

		ctx := auth.WithIdentity(r.Context(), auth.Identity{
			UserID: info.UserID,
			Scopes: info.Scopes,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates a route on the administrative scope. It must sit inside
// Authenticate.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFrom(r.Context())
		if !ok || !id.HasScope(auth.ScopeAdmin) {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
