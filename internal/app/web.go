// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/relabs-tech/track_logger/internal/export"
	"github.com/relabs-tech/track_logger/internal/gps"
	"github.com/relabs-tech/track_logger/internal/mapview"
	"github.com/relabs-tech/track_logger/internal/session"
)

// MapSettings sizes the rendered map.
type MapSettings struct {
	LatitudeDelta  float64
	LongitudeDelta float64
	Width          int
	Height         int
}

// Server exposes the session over HTTP and WebSocket.
type Server struct {
	ctrl    *session.Controller
	locator *Locator
	encoder *export.Encoder
	mapCfg  MapSettings
	hub     *trackHub
	mux     *http.ServeMux
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Locate      LocateStatus `json:"locate"`
	Session     gps.Status   `json:"session"`
	SessionID   string       `json:"session_id,omitempty"`
	Fixes       int          `json:"fixes"`
	ExportReady bool         `json:"export_ready"`
}

// ExportResponse is returned by POST /api/export.
type ExportResponse struct {
	Outcome export.Outcome `json:"outcome"`
	Fixes   int            `json:"fixes"`
}

// NewServer builds the HTTP handlers. staticDir may be empty.
func NewServer(ctrl *session.Controller, locator *Locator, encoder *export.Encoder, mapCfg MapSettings, staticDir string) *Server {
	s := &Server{
		ctrl:    ctrl,
		locator: locator,
		encoder: encoder,
		mapCfg:  mapCfg,
		hub:     newTrackHub(),
		mux:     http.NewServeMux(),
	}
	ctrl.Observe(s.hub.broadcast)

	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/session/start", s.handleStart)
	s.mux.HandleFunc("POST /api/session/stop", s.handleStop)
	s.mux.HandleFunc("GET /api/track", s.handleTrack)
	s.mux.HandleFunc("GET /api/track.geojson", s.handleTrackGeoJSON)
	s.mux.HandleFunc("POST /api/export", s.handleExport)
	s.mux.HandleFunc("GET /api/map.png", s.handleMap)
	s.mux.HandleFunc("GET /ws/track", s.handleTrackWS)

	if staticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	writeJSON(w, http.StatusOK, StatusResponse{
		Locate:      s.locator.Status(),
		Session:     snap.Status,
		SessionID:   snap.SessionID,
		Fixes:       snap.Log.Len(),
		ExportReady: export.Ready(snap.Log, snap.Status),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !s.locator.Status().Ready {
		http.Error(w, s.locator.Status().Message, http.StatusConflict)
		return
	}
	if err := s.ctrl.Start(r.Context()); err != nil {
		log.Printf("web: start session: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(); err != nil {
		log.Printf("web: stop session: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleTrackGeoJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	data, err := export.Encode(snap.Log, trackProperties(snap))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", export.GeoJSONContentType)
	w.Write(data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	outcome, err := s.encoder.ExportWithProperties(r.Context(), snap.Log, snap.Status, trackProperties(snap))
	if err != nil {
		log.Printf("web: %v", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Outcome: outcome, Fixes: snap.Log.Len()})
}

// handleMap renders the current map. Query parameter: ?zoom=<factor>,
// where values below 1 zoom in. The factor must be within
// mapview.MinZoom..MaxZoom.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	loc := s.locator.Status()
	snap := s.ctrl.Snapshot()
	if !loc.Ready && snap.Log.Len() == 0 {
		http.Error(w, loc.Message, http.StatusServiceUnavailable)
		return
	}

	region := mapview.Region{
		Center:         loc.Position,
		LatitudeDelta:  s.mapCfg.LatitudeDelta,
		LongitudeDelta: s.mapCfg.LongitudeDelta,
	}
	if snap.Log.Len() > 0 {
		region = region.Fit(snap.Log)
	}
	if z := r.URL.Query().Get("zoom"); z != "" {
		factor, err := strconv.ParseFloat(z, 64)
		if err != nil || !(factor >= mapview.MinZoom && factor <= mapview.MaxZoom) {
			http.Error(w, fmt.Sprintf("zoom must be between %g and %g", mapview.MinZoom, mapview.MaxZoom), http.StatusBadRequest)
			return
		}
		region = region.Zoom(factor)
	}

	img := mapview.Render(region, snap.Log, s.mapCfg.Width, s.mapCfg.Height)
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		log.Printf("web: png encode error: %v", err)
	}
}

func trackProperties(snap session.Snapshot) geojson.Properties {
	props := geojson.Properties{}
	if snap.SessionID != "" {
		props["session"] = snap.SessionID
	}
	if !snap.StartedAt.IsZero() {
		props["started_at"] = snap.StartedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	if !snap.StoppedAt.IsZero() {
		props["stopped_at"] = snap.StoppedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return props
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}
