package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndHandler(t *testing.T) {
	before := testutil.ToFloat64(generationsFinished.WithLabelValues("completed"))
	IncGenerationStarted()
	ObserveGenerationFinished("completed", 2*time.Second)
	AddImagesSynthesized(4)
	IncAIFallback("describe")

	assert.Equal(t, before+1, testutil.ToFloat64(generationsFinished.WithLabelValues("completed")))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", Handler())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.True(t, strings.Contains(body, "photoshoot_generations_started_total"))
	assert.True(t, strings.Contains(body, `photoshoot_ai_fallbacks_total{operation="describe"}`))
}
