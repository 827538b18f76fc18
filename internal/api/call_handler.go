package api

import (
	"net/http"
)

// ICEServer mirrors the RTCIceServer dictionary browsers expect
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// ICEConfig is what peers need to set up their own connection. The server
// only relays signaling and never sees media.
type ICEConfig struct {
	STUNURLs     []string
	TURNURLs     []string
	TURNUsername string
	TURNPassword string
}

// CallHandler serves call setup data
type CallHandler struct {
	servers []ICEServer
}

func NewCallHandler(cfg ICEConfig) *CallHandler {
	var servers []ICEServer
	if len(cfg.STUNURLs) > 0 {
		servers = append(servers, ICEServer{URLs: cfg.STUNURLs})
	}
	if len(cfg.TURNURLs) > 0 {
		servers = append(servers, ICEServer{
			URLs:       cfg.TURNURLs,
			Username:   cfg.TURNUsername,
			Credential: cfg.TURNPassword,
		})
	}
	if servers == nil {
		servers = []ICEServer{}
	}
	return &CallHandler{servers: servers}
}

// ICEServers godoc
//
//	@Summary		ICE servers for calls
//	@Description	STUN/TURN configuration for establishing a peer connection
//	@Tags			calls
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	object{ice_servers=[]ICEServer}
//	@Router			/calls/ice-servers [get]
func (h *CallHandler) ICEServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ice_servers": h.servers,
	})
}
