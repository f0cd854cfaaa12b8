package ingest

import (
	"errors"
	"net"
	"strings"

	"gorm.io/gorm"

	"github.com/ternarybob/ordermirror/internal/models"
)

// ErrOrgNotFound is fatal configuration: organizations are provisioned at
// bootstrap, never auto-created at ingest time.
var ErrOrgNotFound = errors.New("organization not found")

// ErrValidation wraps a required-field failure routed to the error list
var ErrValidation = errors.New("record failed validation")

// Categorize classifies a persistence failure so the batch summary can
// separate systemic outages (connection — retryable at run level) from
// per-record data problems (not retryable by rerunning the same input).
func Categorize(err error) models.ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrValidation) {
		return models.ErrorCategoryValidation
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return models.ErrorCategoryConstraint
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return models.ErrorCategoryConnection
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"),
		strings.Contains(msg, "constraint failed"),
		strings.Contains(msg, "violates"),
		strings.Contains(msg, "foreign key"):
		return models.ErrorCategoryConstraint
	case strings.Contains(msg, "connection"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "too many clients"):
		return models.ErrorCategoryConnection
	case strings.Contains(msg, "validation"),
		strings.Contains(msg, "required"):
		return models.ErrorCategoryValidation
	default:
		return models.ErrorCategoryUnknown
	}
}
