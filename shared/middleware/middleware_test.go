package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type sampleRequest struct {
	OwnerName string `json:"owner_name" validate:"required"`
	Count     int    `json:"count" validate:"gte=0"`
}

func TestValidateRequest(t *testing.T) {
	if errs := ValidateRequest(sampleRequest{OwnerName: "Raj"}); errs != nil {
		t.Fatalf("expected no errors, got %+v", errs)
	}

	errs := ValidateRequest(sampleRequest{Count: -1})
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %+v", errs)
	}
	if errs[0].Field != "OwnerName" || errs[0].Type != "required" {
		t.Errorf("unexpected first error %+v", errs[0])
	}
	if errs[1].Message != "Value must be greater than or equal to 0" {
		t.Errorf("unexpected second message %q", errs[1].Message)
	}
}

func TestRequestIDAndLogging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(RequestID(), LoggingMiddleware(zap.New(core)))
	r.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"id": GetRequestID(c)}) })

	t.Run("generates id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		r.ServeHTTP(w, req)

		id := w.Header().Get(RequestIDHeader)
		if id == "" {
			t.Fatalf("expected a generated request id")
		}
		var body map[string]string
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if body["id"] != id {
			t.Errorf("handler saw %q, header has %q", body["id"], id)
		}
	})

	t.Run("keeps inbound id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		r.ServeHTTP(w, req)
		if got := w.Header().Get(RequestIDHeader); got != "req-123" {
			t.Errorf("expected req-123, got %q", got)
		}
	})

	entries := logs.FilterMessage("request").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 access log lines, got %d", len(entries))
	}
	if got := entries[1].ContextMap()["request_id"]; got != "req-123" {
		t.Errorf("expected logged request id req-123, got %v", got)
	}
}
