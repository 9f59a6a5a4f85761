package server

import (
	"encoding/json"
	"net/http"

	"github.com/dottapps/api-front/internal/config"
	jsonwriter "github.com/dottapps/api-front/internal/json"
	"github.com/dottapps/api-front/internal/log"
)

// AdminHandlers exposes runtime operational controls behind basic auth
type AdminHandlers struct {
	admin config.AdminConfig
}

// NewAdminHandlers creates admin handlers
func NewAdminHandlers(admin config.AdminConfig) *AdminHandlers {
	return &AdminHandlers{admin: admin}
}

// Handler returns the admin mux wrapped in the basic auth middleware
func (h *AdminHandlers) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/logging", h.LoggingHandler)
	return ChainMiddleware(mux, newAdminAuthMiddleware(h.admin))
}

// LoggingHandler reads (GET) or changes (POST) the runtime log level
func (h *AdminHandlers) LoggingHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		_ = jsonwriter.Write(w, map[string]string{"level": log.GetLogLevel()})

	case http.MethodPost:
		var req struct {
			Level string `json:"level"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonwriter.WriteBadRequest(w, "Invalid JSON body")
			return
		}
		if err := log.SetLogLevel(req.Level); err != nil {
			jsonwriter.WriteBadRequest(w, err.Error())
			return
		}
		log.LogInfoWithFields("admin", "Log level changed", map[string]any{
			"level": req.Level,
		})
		_ = jsonwriter.Write(w, map[string]string{"level": log.GetLogLevel()})

	default:
		w.Header().Set("Allow", "GET, POST")
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET and POST are supported")
	}
}
