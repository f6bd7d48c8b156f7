package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/queue"
)

func testRouter(qm *queue.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(qm, 4).RegisterRoutes(router)
	return router
}

func TestHealthEndpoints(t *testing.T) {
	router := testRouter(queue.NewManager())

	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestSubmitGeneration(t *testing.T) {
	qm := queue.NewManager()
	router := testRouter(qm)

	body := `{"positive":"1girl, masterpiece","negative":"lowres","size":"square","count":2}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"position":1`)
	assert.Equal(t, 1, qm.Depth())
}

func TestSubmitGenerationValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing positive", `{"negative":"lowres"}`},
		{"img2img not supported", `{"positive":"x","mode":"img2img"}`},
		{"count over limit", `{"positive":"x","count":5}`},
		{"unknown size", `{"positive":"x","size":"panorama"}`},
	}

	router := testRouter(queue.NewManager())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestQueueStatus(t *testing.T) {
	qm := queue.NewManager()
	qm.Enqueue(queue.NewRequest("u1", "alice"))
	router := testRouter(qm)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue/status", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"waiting":1`)
	assert.Contains(t, w.Body.String(), `"processing":false`)
}
