package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/oncodash/oncodash/internal/platform/auth"
	"github.com/oncodash/oncodash/internal/platform/db"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Handler upgrades /ws requests and runs the client pumps.
type Handler struct {
	hub         *Hub
	defaultSite string
	upgrader    websocket.Upgrader
}

// NewHandler accepts upgrades from allowedOrigins; an empty list or "*"
// accepts any origin.
func NewHandler(hub *Hub, defaultSite string, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return &Handler{
		hub:         hub,
		defaultSite: defaultSite,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
			},
		},
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	e.GET("/ws", h.HandleConnect, mw...)
}

// HandleConnect upgrades the connection. Initial topics may be passed as
// ?topics=patient/<id>,tumorboard.
func (h *Handler) HandleConnect(c echo.Context) error {
	siteID := db.SiteFromContext(c.Request().Context())
	if siteID == "" {
		siteID = db.ExtractSiteID(c, h.defaultSite)
	}
	if !db.ValidSiteID(siteID) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid site identifier")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader already wrote the error response.
		return nil
	}

	client := NewClient(uuid.NewString(), siteID, auth.UserIDFromContext(c.Request().Context()))
	if raw := c.QueryParam("topics"); raw != "" {
		client.Topics = strings.Split(raw, ",")
	}
	h.hub.Register(client)

	go h.writePump(client, ws)
	go h.readPump(client, ws)
	return nil
}

func (h *Handler) readPump(client *Client, ws *websocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if rejected := h.hub.ProcessMessage(client, msg); len(rejected) > 0 {
			h.hub.logger.Debug().Str("client", client.ID).Strs("topics", rejected).Msg("rejected subscription")
		}
	}
}

func (h *Handler) writePump(client *Client, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
