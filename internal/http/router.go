package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	adminPrefix = "/api/admin"
	usersPrefix = adminPrefix + "/users/"
)

// Router wraps the standard library http.ServeMux.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// allow rejects every method except the one given.
func allow(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.Header().Set("Allow", method)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

func (r *Router) RegisterHealthRoutes(h *HealthHandler) {
	r.Handle("/healthz", allow(http.MethodGet, h.Healthz))
}

func (r *Router) RegisterHomesRoutes(h *HomesHandler) {
	r.Handle(adminPrefix+"/homes", allow(http.MethodGet, h.ListHomes))
	r.Handle(adminPrefix+"/roles", allow(http.MethodGet, h.ListRoles))
}

func (r *Router) RegisterIngestionRoutes(h *IngestionHandler) {
	r.Handle(adminPrefix+"/process-behaviours", allow(http.MethodPost, h.ProcessBehaviours))
}

func (r *Router) RegisterUsersRoutes(h *UsersHandler) {
	r.Handle(adminPrefix+"/users", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.ListUsers(w, req)
		case http.MethodDelete:
			h.DeleteUser(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	r.Handle(usersPrefix+"create", allow(http.MethodPost, h.CreateUser))
	r.Handle(usersPrefix+"export", allow(http.MethodGet, h.ExportUsers))

	// users/{id}/role
	r.Handle(usersPrefix, func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, usersPrefix)
		id, action, ok := strings.Cut(rest, "/")
		if !ok || id == "" || action != "role" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.UpdateUserRole(w, req, id)
	})
}
