package echoapi

import (
	"net/http"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/LucadeVeintemilla/emotionTracking/core"
	"github.com/LucadeVeintemilla/emotionTracking/core/emotion"
)

type statsApi struct {
	emotionSvc *emotion.Service
	mailSvc    core.EmailService
	validate   *validator.Validate
	logger     core.Logger
}

func registerStatsAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := statsApi{
		emotionSvc: deps.EmotionSvc,
		mailSvc:    deps.MailSvc,
		validate:   deps.Validate,
		logger:     deps.Logger,
	}

	sg := g.Group("/sessions/:id/stats", jwt)
	sg.GET("", api.retrieve)
	sg.GET("/summary", api.summary)
	sg.POST("/mail", api.mail)
}

// Handlers

func (api *statsApi) retrieve(ctx echo.Context) error {
	stats, err := api.emotionSvc.Statistics(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing session statistics")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *statsApi) summary(ctx echo.Context) error {
	_, text, err := api.emotionSvc.Summary(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "rendering session summary")
	}
	return ctx.String(http.StatusOK, text)
}

func (api *statsApi) mail(ctx echo.Context) error {
	var data MailSummaryRequest
	if err := bindAndValidate(ctx, &data, api.validate); err != nil {
		return err
	}

	stats, text, err := api.emotionSvc.Summary(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "rendering session summary")
	}

	to := make([]mail.Address, 0, len(data.To))
	for _, addr := range data.To {
		to = append(to, mail.Address{Address: addr})
	}
	api.mailSvc.SendMessages(&core.EmailMessage{
		To:          to,
		Subject:     "Emotion summary for session " + stats.SessionID,
		TextContent: text,
	})
	api.logger.Info("session summary mailed", map[string]interface{}{
		"session_id": stats.SessionID,
		"recipients": len(to),
	}, contextPerson(ctx))

	return ctx.JSON(http.StatusAccepted, stats)
}
