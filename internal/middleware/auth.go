package middleware

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	// TokenExpiry bounds how long an issued API token stays valid.
	TokenExpiry = 24 * time.Hour

	envJWTSecret = "VPSD_JWT_SECRET"

	// PrincipalKey is the gin context key carrying the authenticated
	// principal identifier.
	PrincipalKey = "principal"
)

// Claims carries the principal identity inside the JWT.
type Claims struct {
	Principal string `json:"principal"`
	jwt.RegisteredClaims
}

// AuthService issues and validates API tokens. Credentials are bcrypt
// hashes stored in the registry document.
type AuthService struct {
	secret []byte
}

// NewAuthService reads the signing secret from the environment. Without
// one, a random per-process secret is generated; tokens then survive only
// as long as the process.
func NewAuthService() *AuthService {
	secret := []byte(os.Getenv(envJWTSecret))
	if len(secret) == 0 {
		secret = make([]byte, 32)
		_, _ = rand.Read(secret)
	}
	return &AuthService{secret: secret}
}

// CheckCredential compares a plaintext credential against the stored
// bcrypt hash.
func (a *AuthService) CheckCredential(credential, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)) == nil
}

// GenerateToken issues a signed token identifying the principal.
func (a *AuthService) GenerateToken(principal string) (string, error) {
	claims := Claims{
		Principal: principal,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   principal,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken parses and verifies a token, returning its claims.
func (a *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// RequireAPIAuth rejects requests without a valid bearer token and stores
// the principal in the context for handlers.
func (a *AuthService) RequireAPIAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		claims, err := a.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		c.Set(PrincipalKey, claims.Principal)
		c.Next()
	}
}

// PrincipalFrom returns the authenticated principal for the request.
func PrincipalFrom(c *gin.Context) string {
	return c.GetString(PrincipalKey)
}
