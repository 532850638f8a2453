package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-coursegen/internal/platform/ctxutil"
)

func TestAttachTraceContextKeepsCallerRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen *ctxutil.TraceData
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen == nil || seen.RequestID != "req-123" || seen.TraceID == "" {
		t.Fatalf("trace data=%+v", seen)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("response request id=%q", got)
	}
	if rec.Header().Get("X-Trace-Id") != seen.TraceID {
		t.Fatalf("trace header mismatch")
	}
}

func TestAttachTraceContextCarriesRunID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var run *ctxutil.RunData
	var keyed string
	r.GET("/runs/:id", func(c *gin.Context) {
		run = ctxutil.GetRunData(c.Request.Context())
		keyed = c.GetString("run_id")
		c.Status(http.StatusOK)
	})
	r.GET("/plain", func(c *gin.Context) {
		if ctxutil.GetRunData(c.Request.Context()) != nil {
			t.Errorf("route without :id should not carry run data")
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/runs/abc", nil)
	req.Header.Set("X-Request-Id", "req-9")
	r.ServeHTTP(httptest.NewRecorder(), req)
	if run == nil || run.RunID != "abc" || run.RequestID != "req-9" || keyed != "abc" {
		t.Fatalf("run data=%+v key=%q", run, keyed)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plain", nil))
}
