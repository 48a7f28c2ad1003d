package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ahmedMgouda/avancira-auth/internal/core/domain"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/config"
)

func clientInfoRouter(cfg *config.AppConfig, captured *domain.ClientInfo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ResolveClientInfo(cfg))
	r.GET("/", func(c *gin.Context) {
		*captured = GetClientInfo(c)
		c.Status(http.StatusOK)
	})
	return r
}

func TestResolveClientInfoIssuesDeviceCookie(t *testing.T) {
	cfg := &config.AppConfig{}
	var info domain.ClientInfo
	router := clientInfoRouter(cfg, &info)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if info.DeviceID == "" {
		t.Fatal("a first request must get a device id")
	}
	if info.OperatingSystem != "windows" {
		t.Fatalf("expected windows, got %q", info.OperatingSystem)
	}

	var deviceCookie *http.Cookie
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == deviceCookieName {
			deviceCookie = cookie
		}
	}
	if deviceCookie == nil {
		t.Fatal("device cookie must be set on first contact")
	}
	if deviceCookie.Value != info.DeviceID {
		t.Fatalf("cookie %q does not match resolved device %q", deviceCookie.Value, info.DeviceID)
	}
	if !deviceCookie.HttpOnly {
		t.Fatal("device cookie must be HttpOnly")
	}
}

func TestResolveClientInfoReusesPresentedCookie(t *testing.T) {
	cfg := &config.AppConfig{}
	var info domain.ClientInfo
	router := clientInfoRouter(cfg, &info)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: deviceCookieName, Value: "device-known"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if info.DeviceID != "device-known" {
		t.Fatalf("presented device id must win, got %q", info.DeviceID)
	}
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == deviceCookieName {
			t.Fatal("no new cookie should be issued when one was presented")
		}
	}
}

func TestOperatingSystemFromUA(t *testing.T) {
	cases := map[string]string{
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)": "macos",
		"Mozilla/5.0 (X11; Linux x86_64)":                 "linux",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)":        "ios",
		"Mozilla/5.0 (Linux; Android 14)":                 "android",
		"curl/8.0":                                        "",
	}

	for ua, want := range cases {
		if got := operatingSystemFromUA(ua); got != want {
			t.Fatalf("ua %q: expected %q, got %q", ua, want, got)
		}
	}
}
