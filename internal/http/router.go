package http

import (
	"net/http"
	"strings"
)

// ResourceHandler serves one CRUD resource and its owner scoped listing.
type ResourceHandler interface {
	http.Handler
	ServeMine(w http.ResponseWriter, r *http.Request)
}

// RouterConfig lists the handlers to mount. Protect wraps every route except
// login and registration; it is normally RequireSession.
type RouterConfig struct {
	Auth       *AuthHandler
	Users      *UserHandler
	Resources  map[string]ResourceHandler
	Protect    func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	protect := cfg.Protect
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}

	if cfg.Auth != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.CreateSession(w, r)
		})
		mux.HandleFunc("/sessions/refresh", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.RefreshSession(w, r)
		})
		mux.HandleFunc("/sessions/current", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteCurrentSession(w, r)
		})
		mux.Handle("/auth/whoami", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Auth.WhoAmI(w, r)
		})))
	}

	if cfg.Users != nil {
		list := protect(http.HandlerFunc(cfg.Users.List))
		mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				list.ServeHTTP(w, r)
			case http.MethodPost:
				cfg.Users.Register(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.Handle("/users/", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/users/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			switch r.Method {
			case http.MethodGet:
				cfg.Users.Get(w, r, id)
			case http.MethodDelete:
				cfg.Users.Delete(w, r, id)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodDelete)
			}
		})))
	}

	for path, handler := range cfg.Resources {
		if handler == nil {
			continue
		}
		path = "/" + strings.Trim(path, "/")
		mux.Handle(path, protect(handler))
		mux.Handle(path+"/mine", protect(http.HandlerFunc(handler.ServeMine)))
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
