package auth

import (
	"net/http"
	"strings"
)

// Principal headers set by the authenticating front proxy. The engine trusts
// them only behind the API key check.
const (
	HeaderUserID      = "X-User-Id"
	HeaderRole        = "X-Role"
	HeaderPermissions = "X-Permissions"
)

// PrincipalMiddleware extracts the caller principal from request headers and
// stores it in the request context. Requests without a user id proceed with
// an empty principal; the capability check at each operation rejects them.
func PrincipalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := Principal{
			UserID: r.Header.Get(HeaderUserID),
			Role:   r.Header.Get(HeaderRole),
		}
		if raw := r.Header.Get(HeaderPermissions); raw != "" {
			for _, perm := range strings.Split(raw, ",") {
				if perm = strings.TrimSpace(perm); perm != "" {
					p.Permissions = append(p.Permissions, perm)
				}
			}
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}
