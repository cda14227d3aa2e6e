package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func TestNew_Level(t *testing.T) {
	if lvl := New("debug", "text").GetLevel(); lvl != logrus.DebugLevel {
		t.Errorf("expected debug, got %v", lvl)
	}
	if lvl := New("loud", "json").GetLevel(); lvl != logrus.InfoLevel {
		t.Errorf("unknown level should fall back to info, got %v", lvl)
	}
}

func TestGinLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	r := gin.New()
	r.Use(GinLogger(Component(log, "http")))
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	out := buf.String()
	for _, want := range []string{`"level":"error"`, `"path":"/boom"`, `"status":500`, `"component":"http"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %s", out, want)
		}
	}
}
