package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/LucadeVeintemilla/emotionTracking/core/live"
)

const contextSchedulerKey = "liveScheduler"

// liveSessionMiddleware loads the open live session named by the `:id` path param.
func liveSessionMiddleware(registry *live.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sched, err := registry.Get(ctx.Param("id"))
			if err != nil {
				return err
			}
			ctx.Set(contextSchedulerKey, sched)
			return next(ctx)
		}
	}
}

func contextScheduler(ctx echo.Context) *live.Scheduler {
	sched, _ := ctx.Get(contextSchedulerKey).(*live.Scheduler)
	return sched
}
