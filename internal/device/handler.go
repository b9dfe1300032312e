package device

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// Handler upgrades the request and subscribes the connection to the signal
// id returned by signalID.
func Handler(hub *Hub, signalID func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := signalID(r)
		if id == "" {
			http.Error(w, "missing signal id", http.StatusBadRequest)
			return
		}
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // devices connect from anywhere on the LAN
		})
		if err != nil {
			hub.logger.Warn("websocket accept failed", "signal_id", id, "error", err)
			return
		}
		hub.logger.Info("device connected", "signal_id", id)
		NewClient(hub, conn, id).Run(r.Context())
		hub.logger.Info("device disconnected", "signal_id", id)
	}
}
