package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/solecare/solecare-api/config"
	"github.com/solecare/solecare-api/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret-0123456789abcdef"

func testAuthConfig() *config.Config {
	return &config.Config{
		JWTSecret:   testSecret,
		JWTIssuer:   "solecare-api",
		JWTAudience: "solecare-terminals",
	}
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func terminalClaims(overrides map[string]interface{}) jwt.MapClaims {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":       "solecare-api",
		"aud":       []string{"solecare-terminals"},
		"sub":       "staff-0042",
		"iat":       now.Unix(),
		"exp":       now.Add(time.Hour).Unix(),
		"branch_id": "NCR-VAL-B",
		"role":      "staff",
	}
	for k, v := range overrides {
		claims[k] = v
	}
	return claims
}

func TestEnsureValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/protected", EnsureValidToken(testAuthConfig()), func(c *gin.Context) {
		userID, err := GetUserID(c)
		require.NoError(t, err)
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "branch_id": GetBranchID(c)})
	})

	valid := signToken(t, testSecret, terminalClaims(nil))

	tests := []struct {
		name       string
		target     string
		header     string
		wantStatus int
	}{
		{"bearer header", "/protected", "Bearer " + valid, http.StatusOK},
		{"query parameter for event streams", "/protected?access_token=" + valid, "", http.StatusOK},
		{"missing token", "/protected", "", http.StatusUnauthorized},
		{"wrong secret", "/protected", "Bearer " + signToken(t, "some-other-secret-0123456789abcdef", terminalClaims(nil)), http.StatusUnauthorized},
		{"wrong audience", "/protected", "Bearer " + signToken(t, testSecret, terminalClaims(map[string]interface{}{"aud": []string{"other"}})), http.StatusUnauthorized},
		{"expired", "/protected", "Bearer " + signToken(t, testSecret, terminalClaims(map[string]interface{}{"exp": time.Now().Add(-time.Hour).Unix()})), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.JSONEq(t, `{"user_id":"staff-0042","branch_id":"NCR-VAL-B"}`, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
			}
		})
	}
}

func TestEnsureValidToken_StopsTheChain(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reached := false
	router := gin.New()
	router.GET("/protected", EnsureValidToken(testAuthConfig()), func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, reached)
}

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics.Register()

	router := gin.New()
	router.Use(Metrics())
	router.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, target := range []string{"/items/1", "/items/2", "/missing"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	}

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "solecare_http_requests_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			counts[labels["route"]+" "+labels["status"]] += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(2), counts["/items/:id 204"], "requests are grouped by route template")
	assert.Equal(t, float64(1), counts["unmatched 404"])
}
