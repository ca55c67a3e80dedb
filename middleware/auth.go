package middleware

import (
	"context"
	"errors"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/nischalstha-ns/e-commerce-sub001/common/auth"
	apperrors "github.com/nischalstha-ns/e-commerce-sub001/common/errors"
	cmw "github.com/nischalstha-ns/e-commerce-sub001/common/middleware"
)

const (
	AuthModeGateway  = "gateway"
	AuthModeJWT      = "jwt"
	AuthModeFirebase = "firebase"

	// AccessTokenType is the "typ" claim carried by access tokens.
	AccessTokenType = "access"
)

var ErrMissingCredentials = errors.New("missing credentials")

// Authenticator resolves the cart owner for a request.
type Authenticator interface {
	Authenticate(c *gin.Context) (string, error)
}

// AuthMiddleware stores the authenticated owner id under UserIDKey or
// aborts with 401.
func AuthMiddleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := a.Authenticate(c)
		if err != nil || strings.TrimSpace(userID) == "" {
			if err == nil {
				err = ErrMissingCredentials
			}
			_ = c.Error(err)
			appErr := apperrors.ErrUnauthorized
			c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Message, "code": appErr.Code})
			return
		}
		c.Set(cmw.UserIDKey, userID)
		c.Next()
	}
}

// UserID returns the owner id set by AuthMiddleware.
func UserID(c *gin.Context) (string, bool) {
	id := c.GetString(cmw.UserIDKey)
	return id, id != ""
}

// GatewayAuth trusts the X-User-ID header set by the api-gateway.
type GatewayAuth struct{}

func (GatewayAuth) Authenticate(c *gin.Context) (string, error) {
	userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
	if userID == "" {
		return "", ErrMissingCredentials
	}
	return userID, nil
}

// JWTAuth validates a Bearer access token signed with the shared secret.
type JWTAuth struct {
	Parser *auth.TokenParser
}

func (a JWTAuth) Authenticate(c *gin.Context) (string, error) {
	token, err := bearerToken(c)
	if err != nil {
		return "", err
	}
	claims, err := a.Parser.ParseAndValidateToken(token, AccessTokenType)
	if err != nil {
		return "", err
	}
	return auth.UserID(claims)
}

// IDTokenVerifier is the part of the Firebase auth client used here.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseAuth validates Firebase ID tokens; the owner id is the Firebase uid.
type FirebaseAuth struct {
	Verifier IDTokenVerifier
}

func (a FirebaseAuth) Authenticate(c *gin.Context) (string, error) {
	token, err := bearerToken(c)
	if err != nil {
		return "", err
	}
	decoded, err := a.Verifier.VerifyIDToken(c.Request.Context(), token)
	if err != nil {
		return "", err
	}
	return decoded.UID, nil
}

// bearerToken reads "Authorization: Bearer <token>", falling back to the
// access_token query parameter used by EventSource clients.
func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", auth.ErrInvalidToken
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if q := strings.TrimSpace(c.Query("access_token")); q != "" {
		return q, nil
	}
	return "", ErrMissingCredentials
}
