package main

import (
	"errors"
	"net/http"
	"strings"

	"deception-analyzer/internal/constants"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userContextKey = "user"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// authClaims are the claims of an access token issued by the auth service.
// The subject is the user ID.
type authClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 access tokens signed with a shared secret.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses tokenString and returns the user it was issued to.
func (v *TokenVerifier) Verify(tokenString string) (User, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return User{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return User{}, ErrInvalidToken
	}
	return User{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

// authMiddleware resolves the caller from the bearer token. With no verifier
// configured every request runs as the local user.
func authMiddleware(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Set(userContextKey, User{ID: constants.LocalUserID})
			c.Next()
			return
		}

		token, err := bearerToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "You must be signed in"})
			return
		}
		user, err := verifier.Verify(token)
		if err != nil {
			log.Debugf("Rejected token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// adminOnly lets through callers whose token carries role. With no verifier
// configured the local user administers its own instance.
func adminOnly(verifier *TokenVerifier, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Next()
			return
		}
		if user := currentUser(c); user.Role != role {
			log.WithField("user_id", user.ID).Warnf("Rejected %s %s: role %q is not %q", c.Request.Method, c.FullPath(), user.Role, role)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator access required"})
			return
		}
		c.Next()
	}
}

// currentUser returns the user stored by authMiddleware.
func currentUser(c *gin.Context) User {
	if v, ok := c.Get(userContextKey); ok {
		if user, ok := v.(User); ok {
			return user
		}
	}
	return User{ID: constants.LocalUserID}
}

// corsMiddleware sets the headers browsers need to call the analyze-text
// function directly and answers preflight requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", constants.CORSAllowOrigin)
		c.Header("Access-Control-Allow-Headers", constants.CORSAllowHeaders)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
