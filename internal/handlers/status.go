package handlers

import (
	"net/http"

	"imgforge/pkg/utils"
)

// Status reports liveness. The X-Request-ID header is set by middleware.
func (s *State) Status(w http.ResponseWriter, _ *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
