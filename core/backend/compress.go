package backend

import (
	"net/http"

	"github.com/gorilla/handlers"
)

// handleCompression gzips responses for clients which accept it. Exports
// are large and compress well.
func (b *Backend) handleCompression() {
	compressionMiddleware := func(h http.Handler) http.Handler {
		return handlers.CompressHandler(h)
	}
	b.router.Use(compressionMiddleware)
}
