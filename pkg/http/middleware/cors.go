package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// CORSConfig lists the browser origins allowed to read the radar API.
type CORSConfig struct {
	// Origins holds allowed origins. Empty or containing "*" allows any.
	Origins []string
	Methods []string
	Headers []string
	MaxAge  time.Duration
}

// RadarCORS covers the dashboard's calls: the read endpoints, the manual
// scan trigger and the feed upgrade.
func RadarCORS(origins ...string) CORSConfig {
	return CORSConfig{
		Origins: origins,
		Methods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		Headers: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		MaxAge:  10 * time.Minute,
	}
}

// CORS answers preflight requests and marks responses for allowed origins.
// Requests from other origins are served without CORS headers and the
// browser withholds the response.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	anyOrigin, allowed := originSet(cfg.Origins)
	methods := strings.Join(cfg.Methods, ", ")
	headers := strings.Join(cfg.Headers, ", ")
	var maxAge string
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(int(cfg.MaxAge / time.Second))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			h := c.Response().Header()
			origin := req.Header.Get(echo.HeaderOrigin)
			if origin == "" {
				return next(c)
			}

			if anyOrigin {
				h.Set(echo.HeaderAccessControlAllowOrigin, "*")
			} else {
				h.Add(echo.HeaderVary, echo.HeaderOrigin)
				if _, ok := allowed[normalizeOrigin(origin)]; !ok {
					return next(c)
				}
				h.Set(echo.HeaderAccessControlAllowOrigin, origin)
			}

			if req.Method != http.MethodOptions || req.Header.Get(echo.HeaderAccessControlRequestMethod) == "" {
				return next(c)
			}
			h.Set(echo.HeaderAccessControlAllowMethods, methods)
			if headers != "" {
				h.Set(echo.HeaderAccessControlAllowHeaders, headers)
			}
			if maxAge != "" {
				h.Set(echo.HeaderAccessControlMaxAge, maxAge)
			}
			return c.NoContent(http.StatusNoContent)
		}
	}
}

func originSet(origins []string) (bool, map[string]struct{}) {
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = normalizeOrigin(o)
		if o == "*" {
			return true, nil
		}
		if o != "" {
			set[o] = struct{}{}
		}
	}
	return len(set) == 0, set
}

func normalizeOrigin(o string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
}
