package signal

import "github.com/dkeye/LivePodcast/internal/domain"

func (ctl *SignalWSController) handlePing(
	_ domain.ConnID,
	conn *WsSignalConn,
	_ envelope,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}
