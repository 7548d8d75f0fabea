package handlers

import (
	"net/http"
	"strings"

	"imgforge/internal/metrics"
	"imgforge/pkg/utils"
)

// Router dispatches on the escaped request path. http.ServeMux is avoided on
// purpose: it canonicalizes paths, and source URLs like
// /sig/plain/http://host/img.png carry double slashes and percent escapes
// that must reach the codec byte-exact for signature verification.
type Router struct {
	state *State
}

// NewRouter builds the endpoint dispatcher over the shared state.
func NewRouter(state *State) *Router {
	return &Router{state: state}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.EscapedPath()

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		utils.WriteError(w, http.StatusMethodNotAllowed, utils.ErrRequestInvalidURL, "Method not allowed.")
		return
	}

	switch {
	case path == "/status":
		rt.state.Status(w, r)
	case path == "/metrics":
		metrics.Handler().ServeHTTP(w, r)
	case strings.HasPrefix(path, "/info/"):
		rt.state.Info(w, r, strings.TrimPrefix(path, "/info/"))
	case path == "/" || path == "":
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalidURL, "Invalid URL format.")
	default:
		rt.state.Forge(w, r, path)
	}
}
