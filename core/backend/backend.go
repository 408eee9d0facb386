package backend

import (
	"net/http"
	"sort"
	"strings"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/access"
	"github.com/apae-gestao/apae/core/csql"
	"github.com/apae-gestao/apae/core/jsoncase"
	"github.com/apae-gestao/apae/core/logger"
	"github.com/apae-gestao/apae/core/schema"
	"github.com/gorilla/mux"
)

// Backend is the HTTP backend of the service
type Backend struct {
	router               *mux.Router
	db                   *csql.DB
	authorizationEnabled bool
	validator            *schema.Validator
	corsOrigin           string
	tables               []string
}

// Builder is a builder helper for the Backend
type Builder struct {
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// DB is a postgres database. It is optional, without it the statistics
	// route is disabled and health does not ping.
	DB *csql.DB
	// AuthorizationEnabled enforces the permits of all resources. Without
	// authorization every request is treated as admin.
	AuthorizationEnabled bool
	// Authenticators are middlewares which put an access.Authorization into
	// the request context, for example access.NewJwtMiddleware. They run after
	// the request logger and CORS.
	Authenticators []mux.MiddlewareFunc
	// Validator validates request bodies of resources with a SchemaID. Optional.
	Validator *schema.Validator
	// CORSOrigin is returned as Access-Control-Allow-Origin, default "*"
	CORSOrigin string
}

// New realizes the actual backend. It installs the middlewares and the
// infrastructure routes on the router.
func New(bb *Builder) *Backend {
	if bb.Router == nil {
		panic("Router is missing")
	}
	origin := bb.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	b := &Backend{
		router:               bb.Router,
		db:                   bb.DB,
		authorizationEnabled: bb.AuthorizationEnabled,
		validator:            bb.Validator,
		corsOrigin:           origin,
	}

	logger.AddRequestID(b.router)
	b.handleCORS()
	b.handleCompression()
	b.router.Use(jsoncase.Middleware)
	for _, authenticator := range bb.Authenticators {
		b.router.Use(authenticator)
	}

	b.handleVersion()
	b.handleHealth()
	if b.db != nil {
		b.handleStatistics()
	}
	if !b.authorizationEnabled {
		logger.Default().Warnln("authorization is disabled, all requests act as admin")
	}
	return b
}

// Router returns the mux router of the backend
func (b *Backend) Router() *mux.Router {
	return b.router
}

// AuthorizationEnabled returns whether permits are enforced
func (b *Backend) AuthorizationEnabled() bool {
	return b.authorizationEnabled
}

// Authorization returns the authorization of the request. With authorization
// disabled every request acts as admin.
func (b *Backend) Authorization(r *http.Request) *access.Authorization {
	auth := access.AuthorizationFromContext(r.Context())
	if auth == nil && !b.authorizationEnabled {
		return &access.Authorization{Roles: []string{access.RoleAdmin}}
	}
	return auth
}

// Authorize checks the request against permits. When the request is not
// authorized, it writes 401 for anonymous and 403 for authenticated requests
// and returns false.
func (b *Backend) Authorize(w http.ResponseWriter, r *http.Request, permits []access.Permit, operation core.Operation) bool {
	if !b.authorizationEnabled {
		return true
	}
	auth := access.AuthorizationFromContext(r.Context())
	if auth.IsAuthorized(operation, permits) {
		return true
	}
	if auth == nil {
		http.Error(w, "not authorized", http.StatusUnauthorized)
	} else {
		http.Error(w, "forbidden", http.StatusForbidden)
	}
	return false
}

// registerTable remembers a table for the statistics route
func (b *Backend) registerTable(table string) {
	for _, t := range b.tables {
		if t == table {
			return
		}
	}
	b.tables = append(b.tables, table)
	sort.Strings(b.tables)
}

func (b *Backend) handleCORS() {
	corsMiddleware := func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", b.corsOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{
				"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization",
				"If-None-Match", jsoncase.Header,
			}, ", "))
			w.Header().Set("Access-Control-Expose-Headers", "*")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			// Handle preflight OPTIONS request
			if r.Method == http.MethodOptions {
				logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method, " (handled by CORS middleware)")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			h.ServeHTTP(w, r)
		})
	}
	b.router.Use(corsMiddleware)
}

// ReadValidJSON reads the request body into v. If the backend has a
// validator, the body must be valid against schemaID.
func (b *Backend) ReadValidJSON(r *http.Request, schemaID string, v interface{}) error {
	data, err := ReadBody(r)
	if err != nil {
		return err
	}
	if b.validator != nil && schemaID != "" {
		if err := b.validator.ValidateBytes(data, schemaID); err != nil {
			return err
		}
	}
	return unmarshalBody(data, v)
}
