package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"orbitspeed/internal/logger"
	ws "orbitspeed/internal/services/websocket"
)

// ViewWebsocketHandler registers dashboard viewers in the hub so they
// receive frame previews and live speed samples.
func ViewWebsocketHandler(hub *ws.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warning("Viewer disconnected with error: %v", err)
				}
				return
			}
		}
	}
}
