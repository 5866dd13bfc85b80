package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/LucadeVeintemilla/emotionTracking/core"
	"github.com/LucadeVeintemilla/emotionTracking/core/live"
	"github.com/LucadeVeintemilla/emotionTracking/core/student"
	wshub "github.com/LucadeVeintemilla/emotionTracking/services/websocket"
)

const previewErrorHeader = "X-Preview-Error"

type liveApi struct {
	registry   *live.Registry
	cycles     live.CycleRecorder
	studentSvc *student.Service
	hub        *wshub.Hub
	validate   *validator.Validate
	logger     core.Logger
}

func registerLiveAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := liveApi{
		registry:   deps.Registry,
		cycles:     deps.Cycles,
		studentSvc: deps.StudentSvc,
		hub:        deps.Hub,
		validate:   deps.Validate,
		logger:     deps.Logger,
	}

	sg := g.Group("/sessions/:id")

	// browsers cannot set headers on a websocket handshake
	wsJWTConfig := newJWTConfig(deps.Conf.SecretKey)
	wsJWTConfig.TokenLookup = "query:token"
	sg.GET("/live/ws", api.watch, middleware.JWTWithConfig(wsJWTConfig), liveSessionMiddleware(api.registry))

	ag := sg.Group("", jwt)
	ag.GET("/cycles", api.queryCycles)

	lg := ag.Group("/live", liveSessionMiddleware(api.registry))
	// after lg: Group.Use claims every method of "/live" for lg's middleware
	ag.POST("/live", api.open)
	lg.GET("", api.status)
	lg.DELETE("", api.close)
	lg.PUT("/subject", api.tag)
	lg.DELETE("/subject", api.untag)
	lg.POST("/start", api.start)
	lg.POST("/stop", api.stop)
	lg.GET("/preview", api.preview)
	lg.GET("/stats", api.stats)
}

// LiveStatusResponse is the JSON view of a live session.
type LiveStatusResponse struct {
	wshub.Event
	Stats live.Stats `json:"stats"`
}

func newLiveStatusResponse(sched *live.Scheduler) LiveStatusResponse {
	return LiveStatusResponse{
		Event: wshub.NewEvent(sched.Status()),
		Stats: sched.Stats(),
	}
}

// Handlers

func (api *liveApi) open(ctx echo.Context) error {
	sched, created, err := api.registry.Open(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "opening live session")
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
		api.logger.Info("live session opened", map[string]interface{}{"session_id": sched.SessionID()}, contextPerson(ctx))
	}
	return ctx.JSON(code, newLiveStatusResponse(sched))
}

func (api *liveApi) close(ctx echo.Context) error {
	sched := contextScheduler(ctx)
	if err := api.registry.Close(sched.SessionID()); err != nil {
		return errors.Wrap(err, "closing live session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *liveApi) status(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, newLiveStatusResponse(contextScheduler(ctx)))
}

func (api *liveApi) stats(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextScheduler(ctx).Stats())
}

func (api *liveApi) tag(ctx echo.Context) error {
	var data TagRequest
	if err := bindAndValidate(ctx, &data, api.validate); err != nil {
		return err
	}

	sched := contextScheduler(ctx)
	subject := live.Subject{
		ID:   data.StudentID,
		Name: api.studentSvc.DisplayName(ctx.Request().Context(), data.StudentID),
	}
	if err := sched.Tag(subject); err != nil {
		return errors.Wrap(err, "tagging subject")
	}
	return ctx.JSON(http.StatusOK, newLiveStatusResponse(sched))
}

func (api *liveApi) untag(ctx echo.Context) error {
	sched := contextScheduler(ctx)
	if err := sched.Untag(); err != nil {
		return errors.Wrap(err, "untagging subject")
	}
	return ctx.JSON(http.StatusOK, newLiveStatusResponse(sched))
}

func (api *liveApi) start(ctx echo.Context) error {
	sched := contextScheduler(ctx)
	if err := sched.Start(); err != nil {
		return errors.Wrap(err, "starting live session")
	}
	return ctx.JSON(http.StatusOK, newLiveStatusResponse(sched))
}

func (api *liveApi) stop(ctx echo.Context) error {
	sched := contextScheduler(ctx)
	if err := sched.Stop(); err != nil {
		return errors.Wrap(err, "stopping live session")
	}
	return ctx.JSON(http.StatusOK, newLiveStatusResponse(sched))
}

// preview serves the latest annotated image. `?format=json` (or a remote artifact) answers with its JSON view.
func (api *liveApi) preview(ctx echo.Context) error {
	st := contextScheduler(ctx).Status()
	if st.Preview.IsEmpty() {
		return ctx.NoContent(http.StatusNoContent)
	}

	art := st.Preview.Artifact
	if ctx.QueryParam("format") == "json" || art == nil || len(art.Data) == 0 {
		return ctx.JSON(http.StatusOK, wshub.NewEvent(st).Preview)
	}
	ctx.Response().Header().Set(previewErrorHeader, strconv.FormatBool(st.Preview.HasError()))
	return ctx.Blob(http.StatusOK, art.ContentType, art.Data)
}

func (api *liveApi) queryCycles(ctx echo.Context) error {
	if api.cycles == nil {
		return ctx.JSON(http.StatusOK, []live.CycleRecord{})
	}
	ordering, err := bindOrdering(ctx, live.CycleOrderingFields...)
	if err != nil {
		return err
	}
	recs, err := api.cycles.QueryCycles(ctx.Request().Context(), ctx.Param("id"), ordering...)
	if err != nil {
		return errors.Wrap(err, "querying capture cycles")
	}
	if recs == nil {
		recs = []live.CycleRecord{}
	}
	return ctx.JSON(http.StatusOK, recs)
}
