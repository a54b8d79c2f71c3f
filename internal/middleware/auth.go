package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"creator-subscription-api/internal/models"
	"creator-subscription-api/internal/response"
	"creator-subscription-api/pkg/logging"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

var errInvalidToken = errors.New("invalid or expired token")

// TokenVerifier turns a bearer token into the caller's identity
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*models.Identity, error)
}

type identityClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier accepts HS256 tokens signed with a shared secret. The subject
// claim carries the user id.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for the shared secret
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(ctx context.Context, rawToken string) (*models.Identity, error) {
	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", errInvalidToken)
	}

	return &models.Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   normalizeRole(claims.Role),
	}, nil
}

// Issue signs a token for the identity, valid for ttl
func (v *JWTVerifier) Issue(identity models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := identityClaims{
		Email: identity.Email,
		Role:  identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// OIDCVerifier accepts ID tokens issued by an external identity provider
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the provider's keys from its issuer URL
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to init oidc provider: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*models.Identity, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, errInvalidToken
	}

	var claims struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}

	return &models.Identity{
		UserID: idToken.Subject,
		Email:  claims.Email,
		Role:   normalizeRole(claims.Role),
	}, nil
}

func normalizeRole(role string) string {
	switch role {
	case models.RoleOwner, models.RoleAdmin:
		return role
	default:
		return models.RoleSubscriber
	}
}

// AuthMiddleware authenticates the bearer token with the first verifier
// that accepts it and stores the identity on the context
func AuthMiddleware(verifiers ...TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.ErrorJSON(c, http.StatusUnauthorized, "Authorization header missing")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
			response.ErrorJSON(c, http.StatusUnauthorized, "Bearer token malformed")
			c.Abort()
			return
		}

		for _, verifier := range verifiers {
			identity, err := verifier.Verify(c.Request.Context(), tokenString)
			if err == nil {
				c.Set(identityKey, *identity)
				c.Next()
				return
			}
		}

		logging.Infof("Rejected bearer token - path: %s", c.FullPath())
		response.ErrorJSON(c, http.StatusUnauthorized, "Invalid or expired token")
		c.Abort()
	}
}

// RequireRole allows the request only for callers holding one of the roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			response.ErrorJSON(c, http.StatusUnauthorized, "Not authenticated")
			c.Abort()
			return
		}

		for _, role := range roles {
			if identity.Role == role {
				c.Next()
				return
			}
		}

		response.ErrorJSON(c, http.StatusForbidden, "Access denied")
		c.Abort()
	}
}

// CurrentIdentity returns the identity stored by AuthMiddleware
func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := value.(models.Identity)
	return identity, ok
}
