package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"slices"
	"strings"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/solecare/solecare-api/config"
)

// Keys under which EnsureValidToken stores the caller on the gin context.
const (
	userIDKey   = "user_id"
	branchIDKey = "branch_id"
	claimsKey   = "validated_claims"
)

// TerminalClaims are the private claims a staff terminal token carries.
// Admin tokens may omit branch_id and act across branches.
type TerminalClaims struct {
	BranchID string `json:"branch_id"`
	Role     string `json:"role"`
	Scope    string `json:"scope"`
}

func (c TerminalClaims) Validate(context.Context) error {
	return nil
}

// HasScope reports whether scope is one of the space separated scopes.
func (c TerminalClaims) HasScope(scope string) bool {
	return slices.Contains(strings.Fields(c.Scope), scope)
}

func newTokenValidator(cfg *config.Config) (*validator.Validator, error) {
	secret := []byte(cfg.JWTSecret)
	return validator.New(
		func(context.Context) (interface{}, error) { return secret, nil },
		validator.HS256,
		cfg.JWTIssuer,
		[]string{cfg.JWTAudience},
		validator.WithCustomClaims(func() validator.CustomClaims { return &TerminalClaims{} }),
		validator.WithAllowedClockSkew(time.Minute),
	)
}

// writeTokenError answers a rejected token with the API error envelope.
func writeTokenError(w http.ResponseWriter, _ *http.Request, err error) {
	message := "Failed to validate JWT."
	if errors.Is(err, jwtmiddleware.ErrJWTMissing) {
		message = "Authorization token required."
	}
	log.Printf("WARN rejected token: %v", err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	body := gin.H{"success": false, "error": gin.H{"code": "INVALID_TOKEN", "message": message}}
	if encodeErr := json.NewEncoder(w).Encode(body); encodeErr != nil {
		log.Printf("WARN writing auth error: %v", encodeErr)
	}
}

// EnsureValidToken rejects requests without a valid HS256 terminal token.
// The token comes from the Authorization header, or from ?access_token= for
// EventSource clients, which cannot set headers.
func EnsureValidToken(cfg *config.Config) gin.HandlerFunc {
	tokenValidator, err := newTokenValidator(cfg)
	if err != nil {
		log.Fatalf("jwt validator: %v", err)
	}

	checker := jwtmiddleware.New(
		tokenValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(writeTokenError),
		jwtmiddleware.WithTokenExtractor(jwtmiddleware.MultiTokenExtractor(
			jwtmiddleware.AuthHeaderTokenExtractor,
			jwtmiddleware.ParameterTokenExtractor("access_token"),
		)),
	)

	return func(c *gin.Context) {
		authorized := false
		next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			authorized = true
			validated := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)

			c.Set(userIDKey, validated.RegisteredClaims.Subject)
			if terminal, ok := validated.CustomClaims.(*TerminalClaims); ok {
				c.Set(branchIDKey, terminal.BranchID)
			}
			c.Set(claimsKey, validated)
			c.Request = r
			c.Next()
		})

		checker.CheckJWT(next).ServeHTTP(c.Writer, c.Request)
		if !authorized {
			c.Abort()
		}
	}
}

// GetUserID returns the token subject.
func GetUserID(c *gin.Context) (string, error) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return "", &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}
	userID, ok := v.(string)
	if !ok {
		return "", &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not a string"}
	}
	return userID, nil
}

// GetBranchID returns the branch the caller's token is bound to, or "" when
// the token carries none or auth is disabled.
func GetBranchID(c *gin.Context) string {
	return c.GetString(branchIDKey)
}

func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}
	claims, ok := v.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}
	return claims, nil
}

// RequireScope must run after EnsureValidToken.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := GetClaims(c)
		if err != nil {
			abortAuth(c, http.StatusUnauthorized, "MISSING_CLAIMS", "Could not retrieve token claims")
			return
		}
		terminal, ok := claims.CustomClaims.(*TerminalClaims)
		if !ok || !terminal.HasScope(scope) {
			abortAuth(c, http.StatusForbidden, "INSUFFICIENT_SCOPE", "Token lacks the "+scope+" scope")
			return
		}
		c.Next()
	}
}

func abortAuth(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}

// AuthError is returned by the context accessors.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
