/*Package access provides utilities for access control
 */
package access

import (
	"context"
	"sync"
	"time"

	"github.com/apae-gestao/apae/core"
	"github.com/google/uuid"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

// the predefined context key
const (
	contextKeyAuthorization contextKey = "_authorization_"
)

// well known roles
const (
	// RoleAdmin is authorized for everything unless a permit names it explicitly
	RoleAdmin = "admin"
	// RoleEverybody in a permit applies to every authenticated role
	RoleEverybody = "everybody"
	// RolePublic in a permit applies to everybody, including anonymous requests
	RolePublic = "public"
)

/*Authorization is a context object which stores authorization information
for a logged in user.

An authorization carries a list or roles, the identity (the user's email) and
the id of the profissional the user belongs to.

Authorizations are added to a request context with

  ctx = ContextWithAuthorization(ctx, auth)

and retrieved with

  auth := AuthorizationFromContext(ctx)

Authorization objects are added to the context by the JWT and backdoor
middlewares, depending on the bearer token in the HTTP request. For the
benefit of simple frontend development, the token is also accepted as
Apae-JWT cookie.
*/
type Authorization struct {
	Roles          []string  `json:"roles"`
	Identity       string    `json:"identity,omitempty"`
	ProfissionalID uuid.UUID `json:"profissional_id,omitempty"`
}

// Permit grants a role the permission to execute operations
type Permit struct {
	Role       string           `json:"role"`
	Operations []core.Operation `json:"operations"`
}

// HasRole returns true if the authorization contains the requested role;
// otherwise it returns false.
func (a *Authorization) HasRole(role string) bool {
	if a == nil || a.Roles == nil {
		return false
	}
	for _, hasRole := range a.Roles {
		if role == hasRole {
			return true
		}
	}
	return false
}

// IsAuthorized returns true if the authorization is authorized for the
// requested operation according to the passed permits.
//
// The "admin" role is always authorized by default, unless a permit names it explicitly.
// If a permit is given to "everybody", then this permit applies to all authenticated roles.
// If a permit is given to "public", it applies even to a nil authorization.
func (a *Authorization) IsAuthorized(operation core.Operation, permits []Permit) bool {
	var roles []string
	if a != nil {
		roles = append(roles, a.Roles...)
	}

	explicit := map[string]bool{}
	for _, permit := range permits {
		explicit[permit.Role] = true
	}
	if a.HasRole(RoleAdmin) && !explicit[RoleAdmin] {
		return true
	}
	if len(roles) > 0 {
		roles = append(roles, RoleEverybody)
	}
	roles = append(roles, RolePublic)

	for _, role := range roles {
		for _, permit := range permits {
			if permit.Role != role {
				continue
			}
			for _, op := range permit.Operations {
				if op == operation {
					return true
				}
			}
		}
	}
	return false
}

// ContextWithAuthorization returns a new context with the authorization added to it
func ContextWithAuthorization(ctx context.Context, a *Authorization) context.Context {
	return context.WithValue(ctx, contextKeyAuthorization, a)
}

// AuthorizationFromContext retrieves an authorization from the context
func AuthorizationFromContext(ctx context.Context) *Authorization {
	a, ok := ctx.Value(contextKeyAuthorization).(*Authorization)
	if ok {
		return a
	}
	return nil
}

type cachedAuthorization struct {
	auth    *Authorization
	expires time.Time
}

// AuthorizationCache is an in-memory cache for authorizations. It is used by
// jwt middleware to cache authorization objects for bearer tokens, so a token
// is only verified once.
type AuthorizationCache struct {
	mutex sync.RWMutex
	cache map[string]cachedAuthorization
}

// NewAuthorizationCache creates a new authorization cache
func NewAuthorizationCache() *AuthorizationCache {
	return &AuthorizationCache{cache: make(map[string]cachedAuthorization)}
}

// Read returns an authorization from in-process cache, or nil if the token is
// unknown or expired.
// This function is go-routine safe
func (a *AuthorizationCache) Read(token string) *Authorization {
	a.mutex.RLock()
	entry, ok := a.cache[token]
	a.mutex.RUnlock()
	if !ok {
		return nil
	}
	if time.Now().After(entry.expires) {
		a.mutex.Lock()
		delete(a.cache, token)
		a.mutex.Unlock()
		return nil
	}
	return entry.auth
}

// Write stores an authorization in the in-memory cache until expires.
// Expired entries are purged on write.
// This function is go-routine safe
func (a *AuthorizationCache) Write(token string, auth *Authorization, expires time.Time) {
	now := time.Now()
	a.mutex.Lock()
	for t, entry := range a.cache {
		if now.After(entry.expires) {
			delete(a.cache, t)
		}
	}
	a.cache[token] = cachedAuthorization{auth: auth, expires: expires}
	a.mutex.Unlock()
}
