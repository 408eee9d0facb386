package access

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/apae-gestao/apae/core/logger"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// CookieName is the name of the cookie which may carry the token instead of
// the Authorization header
const CookieName = "Apae-JWT"

// Claims are the claims of the tokens issued by TokenIssuer
type Claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenIssuer issues and verifies HS256 signed tokens
type TokenIssuer struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// Issue returns a signed token for the authorization and its expiry time
func (ti *TokenIssuer) Issue(auth Authorization) (string, time.Time, error) {
	if len(ti.Secret) == 0 {
		return "", time.Time{}, errors.New("token issuer has no secret")
	}
	now := time.Now()
	expires := now.Add(ti.TTL)
	claims := Claims{
		Email: auth.Identity,
		Roles: auth.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.Issuer,
			Subject:   auth.ProfissionalID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.New().String(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// Parse verifies the token and returns its authorization and expiry time
func (ti *TokenIssuer) Parse(tokenString string) (*Authorization, time.Time, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return ti.Secret, nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	if !token.Valid || !claims.VerifyIssuer(ti.Issuer, true) || claims.ExpiresAt == nil {
		return nil, time.Time{}, errors.New("invalid token")
	}
	profissionalID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("invalid subject: %w", err)
	}
	return &Authorization{
		Roles:          claims.Roles,
		Identity:       claims.Email,
		ProfissionalID: profissionalID,
	}, claims.ExpiresAt.Time, nil
}

// tokenFromRequest returns the bearer token of the request, from the
// Authorization header or the Apae-JWT cookie
func tokenFromRequest(r *http.Request) string {
	bearer := r.Header.Get("Authorization")
	if len(bearer) > 0 && bearer != "null" {
		if len(bearer) >= 8 && strings.ToLower(bearer[:7]) == "bearer " {
			return bearer[7:]
		}
		return bearer
	}
	if cookie, _ := r.Cookie(CookieName); cookie != nil {
		return cookie.Value
	}
	return ""
}

// NewJwtMiddleware returns a middleware handler to validate
// JWT bearer token.
//
// Tokens are accepted as "Authorization: Bearer" header or as "Apae-JWT"-cookie.
// Requests without token pass through without authorization.
//
// This is a final handler with regards to the bearer token. It will return
// http.StatusUnauthorized when a token is available but invalid or expired.
func NewJwtMiddleware(issuer *TokenIssuer) mux.MiddlewareFunc {
	authCache := NewAuthorizationCache()

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if AuthorizationFromContext(r.Context()) != nil { // already authorized?
				h.ServeHTTP(w, r)
				return
			}

			tokenString := tokenFromRequest(r)
			if len(tokenString) == 0 {
				h.ServeHTTP(w, r) // no token no auth, moving on
				return
			}

			rlog := logger.FromContext(r.Context())
			auth := authCache.Read(tokenString)
			if auth == nil {
				var (
					expires time.Time
					err     error
				)
				auth, expires, err = issuer.Parse(tokenString)
				if err != nil {
					rlog.WithError(err).Debugln("rejected token")
					http.Error(w, "invalid token", http.StatusUnauthorized)
					return
				}
				authCache.Write(tokenString, auth, expires)
			}

			// now that we have authenticated the requester, we store their identity in the logger
			ctx, _ := logger.ContextWithLoggerIdentity(r.Context(), auth.Identity)
			ctx = ContextWithAuthorization(ctx, auth)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
