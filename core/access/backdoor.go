package access

import (
	"net/http"

	"github.com/apae-gestao/apae/core/logger"
	"github.com/gorilla/mux"
)

// NewBackdoorMiddleware returns a middleware handler for a backdoor
//
// The key for the backdoors map is the bearer token passed with the request.
//
// Example: if you specify the backdoor
//   "please": Authorization{Roles:[]string{"admin"}}
// then any request with an authorization bearer token consisting of the single
// magic word "please" will be authorized with the admin role.
//
// With curl, use -H 'Authorization: Bearer please' or pass a cookie with
// -b 'Apae-JWT=please'
//
// Unknown tokens pass through untouched, so the backdoor must be installed
// before the JWT middleware. Use for development only.
func NewBackdoorMiddleware(backdoors map[string]Authorization) mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if AuthorizationFromContext(r.Context()) != nil { // already authorized?
				h.ServeHTTP(w, r)
				return
			}
			tokenString := tokenFromRequest(r)
			if tryAuth, ok := backdoors[tokenString]; ok && len(tokenString) > 0 {
				auth := tryAuth
				ctx, rlog := logger.ContextWithLoggerIdentity(r.Context(), auth.Identity)
				rlog.Debugln("authorized through backdoor")
				r = r.WithContext(ContextWithAuthorization(ctx, &auth))
			}
			h.ServeHTTP(w, r)
		})
	}
}
