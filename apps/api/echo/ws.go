package echoapi

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	wshub "github.com/LucadeVeintemilla/emotionTracking/services/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// watch streams the live session updates to a viewer until it disconnects.
func (api *liveApi) watch(ctx echo.Context) error {
	sched := contextScheduler(ctx)
	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading to websocket") // the upgrader has already replied
	}
	if !api.hub.Register(sched.SessionID(), conn, wshub.NewEvent(sched.Status())) {
		return conn.Close()
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			api.hub.Unregister(conn)
			return nil
		}
	}
}
