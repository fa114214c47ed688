package realtime

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"boardsync/internal/consts"
)

// Authenticator verifies the handshake credential.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// clientMessage is the wire shape of client-to-server socket messages.
// Data is left raw: join/leave expect a list of board ids and silently
// ignore anything else.
type clientMessage struct {
	Event string                 `json:"event"`
	Data  sonic.NoCopyRawMessage `json:"data"`
}

// Handler upgrades the connection, authenticates it via the token handshake
// parameter and runs the session until the transport closes. The credential
// travels in the query string because the handshake predates any
// request/response cycle the client could attach a header to.
func Handler(hub *Hub, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return func(c echo.Context) error {
		token := c.QueryParam("token")
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" && token != "" {
			authHeader = "Bearer " + token
		}
		subject, err := auth.UserIDFromAuthHeader(authHeader)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			logger.Errorf("websocket upgrade: %v", err)
			return nil
		}

		sess := hub.Attach(subject)
		logger.WithField("subject", subject).Debug("socket connected")

		go writeLoop(conn, sess)
		readLoop(conn, hub, sess, logger)

		hub.Detach(sess)
		_ = conn.Close()
		logger.WithField("subject", subject).Debug("socket disconnected")
		return nil
	}
}

func writeLoop(conn *websocket.Conn, sess *Session) {
	for msg := range sess.Outbound() {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func readLoop(conn *websocket.Conn, hub *Hub, sess *Session, logger *log.Logger) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			logger.WithField("subject", sess.Subject()).Debugf("unparseable socket message: %v", err)
			continue
		}
		dispatch(hub, sess, msg)
	}
}

// dispatch routes a parsed client message. A join/leave whose data is not a
// list of strings is a no-op, never a connection error.
func dispatch(hub *Hub, sess *Session, msg clientMessage) {
	switch msg.Event {
	case consts.JoinBoards:
		if ids, ok := boardIDList(msg.Data); ok {
			hub.Join(sess, ids)
		}
	case consts.LeaveBoards:
		if ids, ok := boardIDList(msg.Data); ok {
			hub.Leave(sess, ids)
		}
	}
}

func boardIDList(raw []byte) ([]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var ids []string
	if err := sonic.Unmarshal(raw, &ids); err != nil {
		return nil, false
	}
	return ids, true
}
