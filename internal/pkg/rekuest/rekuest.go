package rekuest

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/meidash/backend/internal/pkg/apperr"
)

var Validate = validator.New()

type Violation struct {
	Field     string `json:"field,omitempty"`
	Violation string `json:"violation"`
}

func translate(ve validator.ValidationErrors) []*Violation {
	violations := make([]*Violation, 0, len(ve))
	for _, fe := range ve {
		violations = append(violations, &Violation{
			Field:     fe.Namespace(),
			Violation: fe.Tag(),
		})
	}
	return violations
}

// ValidQuery parses the request query into dest and validates it, returning a
// typed invalid-request error carrying the individual violations on failure.
func ValidQuery(ctx *fiber.Ctx, dest interface{}) error {
	if err := ctx.QueryParser(dest); err != nil {
		return apperr.ErrInvalidReq.Msg("unable to parse query: %s", err)
	}
	if err := Validate.Struct(dest); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok {
			return apperr.NewInvalidViolations(translate(ve))
		}
		return apperr.ErrInvalidReq
	}
	return nil
}
