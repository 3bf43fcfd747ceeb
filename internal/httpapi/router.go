package httpapi

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/setarcos/birdroom/internal/metrics"
	"github.com/setarcos/birdroom/internal/utils"
)

const (
	// APIKeyHeader carries the shared secret for protected paths.
	APIKeyHeader = "X-Api-Key"
	// protectedPrefix marks paths that need the shared secret and POST.
	protectedPrefix = "/op"
)

type RouterConfig struct {
	// Prefix is stripped from the start of the request path before routing.
	// Empty disables stripping.
	Prefix string
	// APIKey is the shared secret. When empty every protected request is
	// rejected.
	APIKey  string
	Metrics *metrics.Metrics
}

// Router is the public dispatcher. It strips the optional path prefix, guards
// protected paths and dispatches on the exact remaining path for any method.
type Router struct {
	prefix  string
	apiKey  []byte
	metrics *metrics.Metrics
	routes  map[string]http.Handler
}

func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		prefix:  cfg.Prefix,
		apiKey:  []byte(cfg.APIKey),
		metrics: cfg.Metrics,
		routes:  make(map[string]http.Handler),
	}
}

func (rt *Router) Handle(path string, handler http.Handler) {
	if _, exists := rt.routes[path]; exists {
		panic("httpapi: duplicate route " + path)
	}
	rt.routes[path] = rt.metrics.WrapHandler(path, handler)
}

func (rt *Router) HandleFunc(path string, handler func(http.ResponseWriter, *http.Request)) {
	rt.Handle(path, http.HandlerFunc(handler))
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := rt.normalize(r.URL.EscapedPath())

	if strings.HasPrefix(path, protectedPrefix) {
		if !rt.authorized(r.Header.Get(APIKeyHeader)) {
			rt.metrics.Rejected("unauthorized")
			slog.Warn("rejected protected request", "path", path, "reason", "unauthorized")
			utils.WriteText(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if r.Method != http.MethodPost {
			rt.metrics.Rejected("method_not_allowed")
			utils.WriteText(w, http.StatusMethodNotAllowed, "Method Not Allowed")
			return
		}
	}

	handler, ok := rt.routes[path]
	if !ok {
		rt.metrics.Rejected("not_found")
		utils.WriteText(w, http.StatusNotFound, "Not Found")
		return
	}
	handler.ServeHTTP(w, r)
}

// normalize strips the prefix by plain string comparison, so "/birdroomx"
// becomes "x". A path equal to the prefix becomes "/".
func (rt *Router) normalize(path string) string {
	if rt.prefix == "" || !strings.HasPrefix(path, rt.prefix) {
		return path
	}
	path = path[len(rt.prefix):]
	if path == "" {
		return "/"
	}
	return path
}

func (rt *Router) authorized(presented string) bool {
	if presented == "" || len(rt.apiKey) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), rt.apiKey) == 1
}
