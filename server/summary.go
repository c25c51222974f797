package server

import (
	"sort"
	"strings"

	"github.com/kbukum/voicekit/logger"
)

// systemPaths are routes registered by the server itself rather than the
// voice API.
var systemPaths = map[string]bool{
	"/health":    true,
	"/version":   true,
	"/bridge":    true,
	"/bridge.js": true,
}

// RouteInfo describes one registered Gin route.
type RouteInfo struct {
	Method  string
	Path    string
	Handler string
	System  bool
}

// Routes lists the registered Gin routes: API routes first by path, then
// system routes.
func (s *Server) Routes() []RouteInfo {
	routes := s.engine.Routes()

	sort.Slice(routes, func(i, j int) bool {
		iSys := systemPaths[routes[i].Path]
		jSys := systemPaths[routes[j].Path]
		if iSys != jSys {
			return !iSys
		}
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return methodOrder(routes[i].Method) < methodOrder(routes[j].Method)
	})

	out := make([]RouteInfo, 0, len(routes))
	for _, r := range routes {
		out = append(out, RouteInfo{
			Method:  r.Method,
			Path:    r.Path,
			Handler: formatHandlerName(r.Handler),
			System:  systemPaths[r.Path],
		})
	}
	return out
}

// LogRoutes logs every registered route at info level. Call it after all
// routes are registered.
func (s *Server) LogRoutes() {
	for _, r := range s.Routes() {
		s.log.Info("Route registered", logger.Fields(
			"method", r.Method,
			"path", r.Path,
			"handler", r.Handler,
			"system", r.System,
		))
	}
}

// formatHandlerName extracts a clean handler name from Gin's full handler path.
// Gin stores handlers like:
//
//	"github.com/kbukum/voicekit/server.VoiceRoutes.speak-fm"
//
// We extract: "VoiceRoutes.speak"
func formatHandlerName(fullPath string) string {
	// Gin appends -fm to method values.
	name := strings.TrimSuffix(fullPath, "-fm")

	// Get the last segment after /
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}

	// Clean up receiver notation: "(*Server).x" becomes "Server.x".
	name = strings.ReplaceAll(name, "(*", "")
	name = strings.ReplaceAll(name, ")", "")

	// Closures like "endpoint.Health.func1" collapse to "health".
	if strings.Contains(name, ".func") {
		parts := strings.Split(name, ".")
		for i := len(parts) - 1; i >= 0; i-- {
			if !strings.HasPrefix(parts[i], "func") {
				name = strings.ToLower(parts[i])
				break
			}
		}
	}

	// Drop the package prefix.
	parts := strings.SplitN(name, ".", 2)
	if len(parts) == 2 {
		hasUpper := false
		for _, c := range parts[0] {
			if c >= 'A' && c <= 'Z' {
				hasUpper = true
				break
			}
		}
		if !hasUpper && len(parts[1]) > 0 {
			name = parts[1]
		}
	}

	return name
}

// methodOrder returns a sort key for HTTP methods (GET first, DELETE last).
func methodOrder(method string) int {
	switch method {
	case "GET":
		return 0
	case "POST":
		return 1
	case "PUT":
		return 2
	case "PATCH":
		return 3
	case "DELETE":
		return 4
	default:
		return 5
	}
}
