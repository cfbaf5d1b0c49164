package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowOrigins  []string // "*" and "*.example.com" patterns are accepted
	AllowMethods  []string
	AllowHeaders  []string
	ExposeHeaders []string
	MaxAge        time.Duration
}

// NewCORSConfig builds the API's CORS policy for the given origins.
// Tokens travel in the Authorization header, so credentials are never
// allowed.
func NewCORSConfig(origins []string) CORSConfig {
	return CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
			"X-Request-ID",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"Retry-After",
		},
		MaxAge: 12 * time.Hour,
	}
}

func CORS(config CORSConfig) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if c.Request.Method == http.MethodOptions {
			handlePreflightRequest(c, config, origin)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		if origin != "" && isOriginAllowed(config, origin) {
			setAllowOrigin(c, config, origin)
			if len(config.ExposeHeaders) > 0 {
				c.Header("Access-Control-Expose-Headers", strings.Join(config.ExposeHeaders, ", "))
			}
		}

		c.Next()
	})
}

func handlePreflightRequest(c *gin.Context, config CORSConfig, origin string) {
	if !isOriginAllowed(config, origin) {
		logrus.Debugf("CORS: Origin not allowed: %s", origin)
		return
	}

	setAllowOrigin(c, config, origin)
	c.Header("Access-Control-Allow-Methods", strings.Join(config.AllowMethods, ", "))

	if requestHeaders := c.Request.Header.Get("Access-Control-Request-Headers"); requestHeaders != "" {
		if allowed := filterAllowedHeaders(config, requestHeaders); len(allowed) > 0 {
			c.Header("Access-Control-Allow-Headers", strings.Join(allowed, ", "))
		}
	} else {
		c.Header("Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ", "))
	}

	if config.MaxAge > 0 {
		c.Header("Access-Control-Max-Age", strconv.Itoa(int(config.MaxAge.Seconds())))
	}
}

func setAllowOrigin(c *gin.Context, config CORSConfig, origin string) {
	for _, allowed := range config.AllowOrigins {
		if allowed == "*" {
			c.Header("Access-Control-Allow-Origin", "*")
			return
		}
	}
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")
}

func isOriginAllowed(config CORSConfig, origin string) bool {
	if origin == "" {
		return false
	}

	for _, allowedOrigin := range config.AllowOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
		// *.example.com matches subdomains only
		if strings.HasPrefix(allowedOrigin, "*.") {
			if strings.HasSuffix(origin, "."+allowedOrigin[2:]) {
				return true
			}
		}
	}

	return false
}

func filterAllowedHeaders(config CORSConfig, requestHeaders string) []string {
	var allowedHeaders []string
	for _, header := range strings.Split(requestHeaders, ",") {
		header = strings.TrimSpace(header)
		for _, allowed := range config.AllowHeaders {
			if strings.EqualFold(allowed, header) {
				allowedHeaders = append(allowedHeaders, header)
				break
			}
		}
	}
	return allowedHeaders
}
