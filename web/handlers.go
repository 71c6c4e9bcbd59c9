package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mbocsi/lightwaverf/client"
	"github.com/mbocsi/lightwaverf/proto"
	"github.com/mbocsi/lightwaverf/queue"
)

type hubResponse struct {
	Hub       client.HubState `json:"hub"`
	Target    string          `json:"target"`
	Connected bool            `json:"connected"`
	Queue     queue.Stats     `json:"queue"`
}

func (s *Server) HandleHub(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, hubResponse{
		Hub:       s.hub.Hub(),
		Target:    s.hub.Target(),
		Connected: s.hub.Connected(),
		Queue:     s.hub.Stats(),
	})
}

func (s *Server) HandleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.ctrl.Devices(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) HandleTurnOn(w http.ResponseWriter, r *http.Request) {
	d, err := s.device(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if err := s.ctrl.TurnOn(r.Context(), d); err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "device": d})
}

func (s *Server) HandleTurnOff(w http.ResponseWriter, r *http.Request) {
	d, err := s.device(r)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if err := s.ctrl.TurnOff(r.Context(), d); err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "device": d})
}

type dimRequest struct {
	Level *int `json:"level"`
}

func (s *Server) HandleDim(w http.ResponseWriter, r *http.Request) {
	d, err := s.device(r)
	if err != nil {
		s.handleError(w, err)
		return
	}

	var req dimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.handleError(w, invalidInput("invalid JSON body: "+err.Error()))
		return
	}
	if req.Level == nil || *req.Level < 0 || *req.Level > 100 {
		s.handleError(w, invalidInput("level must be between 0 and 100"))
		return
	}

	if err := s.ctrl.Dim(r.Context(), d, *req.Level); err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "device": d, "level": *req.Level})
}

type commandRequest struct {
	Command string `json:"command"`
}

func (s *Server) HandleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.handleError(w, invalidInput("invalid JSON body: "+err.Error()))
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		s.handleError(w, invalidInput("command is required"))
		return
	}

	res, err := s.ctrl.Command(r.Context(), req.Command)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) device(r *http.Request) (proto.Device, error) {
	room, err := strconv.Atoi(chi.URLParam(r, "room"))
	if err != nil || room < 1 {
		return proto.Device{}, invalidInput("room must be a positive integer")
	}
	device, err := strconv.Atoi(chi.URLParam(r, "device"))
	if err != nil || device < 1 {
		return proto.Device{}, invalidInput("device must be a positive integer")
	}
	return s.ctrl.Device(room, device), nil
}
