package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/authz"
)

type scopeKey struct{}

// Claims are the token claims the service reads. A missing or null
// organization_id means an administrative caller.
type Claims struct {
	OrganizationID *int64 `json:"organization_id"`
	jwt.RegisteredClaims
}

// WithScope stores the caller scope in ctx.
func WithScope(ctx context.Context, s authz.Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the caller scope. Requests that never passed Authenticate are unrestricted.
func ScopeFrom(ctx context.Context) authz.Scope {
	s, _ := ctx.Value(scopeKey{}).(authz.Scope)
	return s
}

// Authenticate resolves the caller scope.
//
// With a secret, every request needs an HS256 bearer token. Without one the
// service sits behind a gateway and trusts the organization header; an absent
// header is an administrative caller.
func Authenticate(secret []byte, header string, logger log.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := NewResponseWriter(w, logger)
			var (
				scope authz.Scope
				err   error
			)
			if len(secret) > 0 {
				scope, err = scopeFromToken(r, secret)
				if err != nil {
					logger.WithError(err).Debug("rejected token")
					rw.SendError(http.StatusUnauthorized, "invalid or missing bearer token")
					return
				}
			} else if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
				id, err := strconv.ParseInt(v, 10, 64)
				if err != nil {
					rw.SendError(http.StatusBadRequest, "invalid "+header+" header")
					return
				}
				scope = authz.OrganizationScope(id)
			}
			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), scope)))
		})
	}
}

func scopeFromToken(r *http.Request, secret []byte) (authz.Scope, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return authz.Scope{}, errors.New("no bearer token")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return authz.Scope{}, err
	}
	return authz.Scope{OrganizationID: claims.OrganizationID}, nil
}
