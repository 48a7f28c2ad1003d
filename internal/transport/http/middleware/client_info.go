package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/config"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/security"
)

const (
	deviceCookieName = "avancira_device"
	// Browsers cap persistent cookies at 400 days.
	deviceCookieMaxAge = 400 * 24 * 60 * 60
)

// ResolveClientInfo resolves the per-request client metadata exactly once and
// stores it in the gin context. The device identifier rides a long-lived
// HttpOnly cookie: a request without one gets a fresh identifier and the
// Set-Cookie in the same response, so the session row created by a first
// login and every later request from that browser agree on the device.
func ResolveClientInfo(cfg *config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ClientInfoKey); exists {
			c.Next()
			return
		}

		deviceID, err := c.Cookie(deviceCookieName)
		if err != nil || deviceID == "" {
			deviceID = security.GenerateDeviceID()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     deviceCookieName,
				Value:    deviceID,
				Path:     "/",
				Domain:   cfg.Cookie.Domain,
				MaxAge:   deviceCookieMaxAge,
				Secure:   cfg.Cookie.Secure,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		userAgent := c.Request.UserAgent()
		c.Set(ClientInfoKey, domain.ClientInfo{
			DeviceID:        deviceID,
			IPAddress:       c.ClientIP(),
			UserAgent:       userAgent,
			OperatingSystem: operatingSystemFromUA(userAgent),
		})

		c.Next()
	}
}

func operatingSystemFromUA(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "windows"):
		return "windows"
	case strings.Contains(lower, "android"):
		return "android"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"):
		return "ios"
	case strings.Contains(lower, "mac os"), strings.Contains(lower, "macintosh"):
		return "macos"
	case strings.Contains(lower, "linux"):
		return "linux"
	default:
		return ""
	}
}
