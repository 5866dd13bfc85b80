package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/LucadeVeintemilla/emotionTracking/core"
)

const orderingParam = "ordering"

// bindOrdering reads the `?ordering=-started_at,outcome` query param.
func bindOrdering(ctx echo.Context, allowed ...string) ([]core.DBOrdering, error) {
	return core.ParseOrderings(ctx.QueryParam(orderingParam), allowed...)
}

type (
	TagRequest struct {
		StudentID string `json:"student_id" validate:"notblank"`
	}

	MailSummaryRequest struct {
		To []string `json:"to" validate:"required,min=1,dive,email"`
	}
)

func (r *TagRequest) Validate(validate *validator.Validate) error {
	r.StudentID = core.CleanString(r.StudentID)
	return validate.Struct(r)
}

func (r *MailSummaryRequest) Validate(validate *validator.Validate) error {
	for i, addr := range r.To {
		r.To[i] = core.CleanString(addr)
	}
	return validate.Struct(r)
}

func bindAndValidate(ctx echo.Context, data interface{ Validate(*validator.Validate) error }, validate *validator.Validate) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrapf(err, "binding to %T", data)
	}
	return data.Validate(validate)
}
