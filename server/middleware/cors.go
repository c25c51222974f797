package middleware

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// CORSConfig holds CORS middleware configuration.
//
// An allowed origin is either an exact origin, "*", or a path.Match
// pattern such as "http://localhost:*" or "https://*.kiosk.local".
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
	ExposedHeaders   []string `yaml:"exposed_headers" mapstructure:"exposed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials" mapstructure:"allow_credentials"`
	MaxAge           int      `yaml:"max_age" mapstructure:"max_age"` // seconds, 0 leaves it to the browser
}

// Validate rejects malformed origin patterns.
func (c *CORSConfig) Validate() error {
	if err := ValidateOrigins("server.cors.allowed_origins", c.AllowedOrigins); err != nil {
		return err
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("server.cors.max_age must be non-negative (got: %d)", c.MaxAge)
	}
	return nil
}

// CORS returns middleware that sets CORS headers and answers preflight
// requests. Pages hosting the bridge agent load /bridge.js cross-origin.
func CORS(cfg *CORSConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")
			origin := r.Header.Get("Origin")
			allowed := origin != "" && MatchOrigin(origin, cfg.AllowedOrigins)
			if allowed {
				h.Set("Access-Control-Allow-Origin", origin)
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if len(cfg.ExposedHeaders) > 0 {
					h.Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposedHeaders, ", "))
				}
			}

			// A bare OPTIONS without Access-Control-Request-Method is a
			// normal request and reaches the router.
			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)
				return
			}
			if allowed {
				setPreflightHeaders(h, cfg)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func setPreflightHeaders(h http.Header, cfg *CORSConfig) {
	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")
	if len(cfg.AllowedMethods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowedMethods, ", "))
	}
	if len(cfg.AllowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", "))
	}
	if cfg.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
	}
}

// ValidateOrigins rejects malformed origin patterns; key names the setting
// in the error.
func ValidateOrigins(key string, origins []string) error {
	for _, o := range origins {
		if _, err := path.Match(o, ""); err != nil {
			return fmt.Errorf("%s: bad pattern %q", key, o)
		}
	}
	return nil
}

// OriginChecker returns a websocket origin check. Requests without an
// Origin header (non-browser clients) and same-origin pages always pass;
// any other origin must match one of allowed.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		return MatchOrigin(origin, allowed)
	}
}

// MatchOrigin reports whether origin is "*", equal to, or matched by one of
// allowed.
func MatchOrigin(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
		if ok, err := path.Match(a, origin); err == nil && ok {
			return true
		}
	}
	return false
}
