package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fieldservice-api/internal/middleware"
	"github.com/noah-isme/fieldservice-api/internal/models"
	appErrors "github.com/noah-isme/fieldservice-api/pkg/errors"
	"github.com/noah-isme/fieldservice-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// requireCompany writes a 401 and returns "" when the request carries no company scope.
func requireCompany(c *gin.Context) string {
	claims := claimsFromContext(c)
	if claims == nil || claims.CompanyID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return ""
	}
	return claims.CompanyID
}

func requireParam(c *gin.Context, name string) string {
	value := strings.TrimSpace(c.Param(name))
	if value == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, name+" is required"))
	}
	return value
}

// parseInstant accepts RFC3339 timestamps or plain YYYY-MM-DD dates (midnight UTC).
func parseInstant(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid time, expected RFC3339 or YYYY-MM-DD")
	}
	return parsed, nil
}

// parseWindow reads the required start and end query parameters.
func parseWindow(c *gin.Context) (time.Time, time.Time, bool) {
	rawStart, rawEnd := c.Query("start"), c.Query("end")
	if rawStart == "" || rawEnd == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start and end are required"))
		return time.Time{}, time.Time{}, false
	}
	start, err := parseInstant(rawStart)
	if err != nil {
		response.Error(c, err)
		return time.Time{}, time.Time{}, false
	}
	end, err := parseInstant(rawEnd)
	if err != nil {
		response.Error(c, err)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func parseQueryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be an integer")
	}
	return val, nil
}

func parseQueryBool(c *gin.Context, key string) bool {
	val, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	return err == nil && val
}
