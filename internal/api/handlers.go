package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MMSchneider/dubswitch-sub000/internal/store"
	"github.com/MMSchneider/dubswitch-sub000/internal/x32"
)

// handleAutodiscover broadcasts a discovery probe and waits for a console
// to answer. A silent network is a failure envelope, not an HTTP error.
func (s *Server) handleAutodiscover(w http.ResponseWriter, r *http.Request) {
	ip, err := s.engine.Discover(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "discovery interrupted: "+err.Error())
		return
	}
	if ip == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":    false,
			"ip":    nil,
			"error": "no console answered",
		})
		return
	}
	writeOK(w, map[string]any{"ip": ip})
}

// handleEnumerateSources probes all channels' patch values and returns
// them classified. Channels that did not answer in time carry a null
// value and class Other.
func (s *Server) handleEnumerateSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.engine.EnumerateSources(r.Context())
	if err != nil {
		if errors.Is(err, x32.ErrNoDevice) {
			writeError(w, http.StatusServiceUnavailable, "no console registered")
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	writeOK(w, map[string]any{"sources": sources})
}

// handleSetChannelMatrix merges the posted document into the persisted
// channel matrix and fans the canonical result out to all sessions.
func (s *Server) handleSetChannelMatrix(w http.ResponseWriter, r *http.Request) {
	var patch store.Matrix
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.store.SaveMatrix(patch)
	if err != nil {
		writeInternalError(w, "saving matrix: "+err.Error())
		return
	}

	s.hub.Broadcast(x32.NewMatrixUpdateMessage(result.Matrix))

	body := map[string]any{"matrix": result.Matrix}
	if result.Warning != "" {
		body["warning"] = result.Warning
	}
	writeOK(w, body)
}

// handleGetMatrix returns the persisted channel matrix.
func (s *Server) handleGetMatrix(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]any{"matrix": s.store.Matrix()})
}

// setPortRequest is the body of POST /set-port.
type setPortRequest struct {
	Port int `json:"port"`
}

// handleSetPort persists the preferred HTTP port, then exits the process
// so the supervisor restarts it on the new port.
func (s *Server) handleSetPort(w http.ResponseWriter, r *http.Request) {
	var req setPortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Port < 1 || req.Port > 65535 {
		writeBadRequest(w, "port must be 1..65535")
		return
	}

	if err := s.store.SavePort(req.Port); err != nil {
		writeInternalError(w, "saving port: "+err.Error())
		return
	}

	writeOK(w, map[string]any{"port": req.Port})

	s.logger.Info("preferred port persisted, exiting for supervisor restart", "port", req.Port)
	go func() {
		time.Sleep(exitDelay)
		s.exit(0)
	}()
}

// handleStatus returns a diagnostic snapshot of the engine and hub.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	m := s.engine.Metrics()
	writeOK(w, map[string]any{
		"version":         s.version,
		"uptime_seconds":  int(time.Since(s.started).Seconds()),
		"device_ip":       s.engine.DeviceIP(),
		"clients":         s.hub.ClientCount(),
		"pending_queries": s.engine.PendingQueries(),
		"counters": map[string]uint64{
			"datagrams_sent":     m.DatagramsSent.Load(),
			"datagrams_received": m.DatagramsReceived.Load(),
			"queries_issued":     m.QueriesIssued.Load(),
			"queries_fulfilled":  m.QueriesFulfilled.Load(),
			"queries_timed_out":  m.QueriesTimedOut.Load(),
			"discovery_probes":   m.DiscoveryProbes.Load(),
			"watchdog_probes":    m.WatchdogProbes.Load(),
		},
	})
}

// handleRoutingHistory returns recent routing-change audit entries,
// newest first. With no history backend configured the list is empty.
func (s *Server) handleRoutingHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeOK(w, map[string]any{"entries": []any{}})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		writeInternalError(w, "reading history: "+err.Error())
		return
	}
	writeOK(w, map[string]any{"entries": entries})
}
