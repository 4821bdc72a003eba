package v1

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/adanyl0v/tasks-plus/internal/models"
)

const (
	userIDCtxKey    = "user_id"
	sessionIDCtxKey = "session_id"
	identityCtxKey  = "identity"
)

var errFingerprintMismatch = errors.New("fingerprint mismatch")

// HandleAuthMiddleware rejects requests without a valid session.
func (h *handlerImpl) HandleAuthMiddleware(c *gin.Context) {
	session, err := h.resolveSession(c)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to resolve session")
		abort(c, newUnauthorizedError(errNoActiveSession.Error()))
		return
	}

	setSession(c, session)
	c.Next()
}

// HandleSessionMiddleware attaches the session if there is one and lets
// anonymous requests through.
func (h *handlerImpl) HandleSessionMiddleware(c *gin.Context) {
	session, err := h.resolveSession(c)
	if err != nil {
		h.logger.Debug().
			Err(err).
			Msg("continuing without session")
		c.Next()
		return
	}

	setSession(c, session)
	c.Next()
}

func (h *handlerImpl) resolveSession(c *gin.Context) (*models.Session, error) {
	accessToken, err := bearerToken(c)
	if err != nil {
		return nil, err
	}

	claims, err := h.auth.ParseJWTToken(accessToken)
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			return nil, err
		}

		result, err := h.refresh(c)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh expired token: %w", err)
		}
		claims, err = h.auth.ParseJWTToken(result.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to parse fresh token: %w", err)
		}
	}

	session, err := h.sessions.GetSessionByID(c, claims.Subject)
	if err != nil {
		return nil, err
	}

	fingerprint, err := generateFingerprint(c)
	if err != nil {
		return nil, err
	}
	if fingerprint != session.Fingerprint {
		return nil, errFingerprintMismatch
	}
	return session, nil
}

// bearerToken reads the access token from the Authorization header and
// falls back to the access token cookie.
func bearerToken(c *gin.Context) (string, error) {
	const authHeader, bearerPrefix = "Authorization", "Bearer"

	header := c.GetHeader(authHeader)
	if header == "" {
		token, err := c.Cookie(accessTokenCookie)
		if err != nil || token == "" {
			return "", errors.New("no access token")
		}
		return token, nil
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != bearerPrefix {
		return "", errors.New("invalid authorization header")
	}
	return parts[1], nil
}

func setSession(c *gin.Context, session *models.Session) {
	identity := session.Identity
	c.Set(userIDCtxKey, session.UserID)
	c.Set(sessionIDCtxKey, session.ID)
	c.Set(identityCtxKey, &identity)
}

// identityFromContext returns nil for anonymous requests.
func identityFromContext(c *gin.Context) *models.Identity {
	value, exists := c.Get(identityCtxKey)
	if !exists {
		return nil
	}
	identity, _ := value.(*models.Identity)
	return identity
}
