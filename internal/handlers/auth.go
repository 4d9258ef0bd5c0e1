package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/attempt-engine/internal/config"
	"github.com/SAP-F-2025/attempt-engine/internal/utils"
)

const (
	studentIDKey    = "student_id"
	studentIDHeader = "X-Student-ID"
)

var errMissingToken = errors.New("missing bearer token")

// TokenParser turns a bearer token into the student id it was issued to.
type TokenParser interface {
	StudentID(token string) (string, error)
}

// CasdoorTokenParser verifies tokens against the Casdoor application
// certificate.
type CasdoorTokenParser struct {
	client *casdoorsdk.Client
}

func NewCasdoorTokenParser(cfg config.CasdoorConfig) *CasdoorTokenParser {
	return &CasdoorTokenParser{
		client: casdoorsdk.NewClient(
			cfg.Endpoint,
			cfg.ClientID,
			cfg.ClientSecret,
			cfg.Certificate,
			cfg.OrganizationName,
			cfg.ApplicationName,
		),
	}
}

func (p *CasdoorTokenParser) StudentID(token string) (string, error) {
	claims, err := p.client.ParseJwtToken(token)
	if err != nil {
		return "", err
	}
	if claims.User.Id != "" {
		return claims.User.Id, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", errors.New("token carries no user id")
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", errMissingToken
	}
	return strings.TrimSpace(token), nil
}

// AuthMiddleware resolves the student for every request. With a nil parser
// the student id is taken from the X-Student-ID header, which is only meant
// for development behind a trusted gateway.
func AuthMiddleware(parser TokenParser, logger utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var studentID string
		if parser == nil {
			studentID = strings.TrimSpace(c.GetHeader(studentIDHeader))
		} else {
			token, err := bearerToken(c)
			if err == nil {
				studentID, err = parser.StudentID(token)
			}
			if err != nil {
				logger.Warn("Rejected request token", "path", c.Request.URL.Path, "error", err)
			}
		}

		if studentID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "User not authenticated",
			})
			return
		}

		c.Set(studentIDKey, studentID)
		c.Next()
	}
}
