package devserver

import (
	"net/http"

	apperrors "github.com/volxolabs/walink/internal/errors"
	"github.com/volxolabs/walink/internal/httputil"
)

// The control endpoints only ever carry small JSON bodies.
const maxBodySize = 64 << 10

// bodyLimit rejects oversized requests up front and caps the reader so
// handlers never buffer more than maxBodySize from a client.
func bodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > maxBodySize {
			httputil.WriteError(w, apperrors.InvalidInput("body", "request body too large"))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		next.ServeHTTP(w, r)
	})
}
