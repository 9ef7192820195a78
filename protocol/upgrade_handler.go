// File: protocol/upgrade_handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import "github.com/momentics/hioload-net/api"

type upgradeHandler struct {
	api.Handler
}

// UpgradeHandler answers the HTTP upgrade request of a session and forwards
// everything received afterwards to next. next sees OnConnect only once the
// 101 response was sent. Failed upgrades get a 400 reply and the session is
// closed.
func UpgradeHandler(next api.Handler) api.Handler {
	return upgradeHandler{Handler: next}
}

func (h upgradeHandler) OnConnect(api.Session) any { return nil }

func (h upgradeHandler) OnReceive(s api.Session, msg any) any {
	if IsUpgraded(s) {
		return h.Handler.OnReceive(s, msg)
	}
	raw, ok := msg.([]byte)
	if !ok {
		return h.Handler.OnReceive(s, msg)
	}
	resp, err := Upgrade(s, raw)
	if err != nil {
		h.Handler.OnException(s, err)
		_ = s.Write(RejectResponse(err))
		s.Close()
		return nil
	}
	if err := s.Write(resp); err != nil {
		return nil
	}
	return h.Handler.OnConnect(s)
}
