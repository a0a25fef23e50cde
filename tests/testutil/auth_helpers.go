package testutil

import (
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/solecare/solecare-api/middleware"
	"github.com/stretchr/testify/require"
)

// Token settings used by router-level tests.
const (
	TestJWTSecret   = "test-secret-with-enough-entropy-0123456789"
	TestJWTIssuer   = "solecare-api"
	TestJWTAudience = "solecare-terminals"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, branchID, role string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  TestJWTIssuer,
			Subject: subject,
		},
		CustomClaims: &middleware.TerminalClaims{
			BranchID: branchID,
			Role:     role,
		},
	}
}

// SetMockAuthContext sets up a mock authenticated context for testing
func SetMockAuthContext(c *gin.Context, userID, branchID, role string) {
	claims := MockValidatedClaims(userID, branchID, role)
	c.Set("user_id", userID)
	c.Set("branch_id", branchID)
	c.Set("validated_claims", claims)
}

// MintToken signs an HS256 token the way the staff login service does.
func MintToken(t *testing.T, subject, branchID, role string) string {
	t.Helper()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":       TestJWTIssuer,
		"aud":       []string{TestJWTAudience},
		"sub":       subject,
		"iat":       now.Unix(),
		"exp":       now.Add(time.Hour).Unix(),
		"branch_id": branchID,
		"role":      role,
	})

	signed, err := token.SignedString([]byte(TestJWTSecret))
	require.NoError(t, err)
	return signed
}
