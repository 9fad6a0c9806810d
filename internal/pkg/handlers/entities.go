package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/jake-scott/control4-bridge/internal/pkg/logging"
	"github.com/jake-scott/control4-bridge/internal/pkg/media"
)

// EntityHandler serves entity state and accepts commands
type EntityHandler struct {
	registry       *media.Registry
	commandTimeout time.Duration
}

func NewEntityHandler(registry *media.Registry, commandTimeout time.Duration) *EntityHandler {
	return &EntityHandler{
		registry:       registry,
		commandTimeout: commandTimeout,
	}
}

// Routes adds the entity and health routes to r
func (h *EntityHandler) Routes(r *mux.Router) {
	r.HandleFunc("/entities", h.HandleList).Methods(http.MethodGet)
	r.HandleFunc("/entities/{id}", h.HandleGet).Methods(http.MethodGet)
	r.HandleFunc("/entities/{id}/commands", h.HandleCommand).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)
}

func (h *EntityHandler) lastUpdated(platform string) strfmt.DateTime {
	for _, p := range h.registry.Platforms() {
		if p.Name == platform && p.Coordinator != nil {
			return strfmt.DateTime(p.Coordinator.LastUpdate())
		}
	}

	return strfmt.DateTime{}
}

func (h *EntityHandler) entityState(p media.Player) EntityState {
	return EntityState{
		Snapshot:    media.TakeSnapshot(p),
		LastUpdated: h.lastUpdated(p.Platform()),
	}
}

func (h *EntityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	players := h.registry.All()
	states := make([]EntityState, 0, len(players))
	for _, p := range players {
		states = append(states, h.entityState(p))
	}

	sendJSONResponse(w, r, http.StatusOK, states)
}

func (h *EntityHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	p, ok := h.registry.Get(id)
	if !ok {
		sendJSONError(w, r, http.StatusNotFound, "no entity "+id)
		return
	}

	sendJSONResponse(w, r, http.StatusOK, h.entityState(p))
}

func (h *EntityHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logging.Logger(r.Context())
	id := mux.Vars(r)["id"]

	p, ok := h.registry.Get(id)
	if !ok {
		sendJSONError(w, r, http.StatusNotFound, "no entity "+id)
		return
	}

	var req CommandRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		ctxLogger.WithError(err).Errorf("decoding JSON")
		sendJSONError(w, r, http.StatusBadRequest, "unable to parse JSON")
		return
	}

	if err := req.Validate(formats); err != nil {
		ctxLogger.WithError(err).Errorf("request validation failure")
		sendJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if h.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.commandTimeout)
		defer cancel()
	}

	cmd := req.ToCommand()
	ctxLogger.Infof("command %s for entity %s (%s)", cmd.Name, id, p.Name())

	if err := media.Dispatch(ctx, p, cmd, "api"); err != nil {
		h.sendCommandError(w, r, err)
		return
	}

	sendJSONResponse(w, r, http.StatusOK, h.entityState(p))
}

func (h *EntityHandler) sendCommandError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, media.ErrUnknownCommand), errors.Is(err, media.ErrMissingArgument):
		sendJSONError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, media.ErrNotSupported):
		sendJSONError(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		logging.Logger(r.Context()).WithError(err).Error("executing command")
		sendJSONError(w, r, http.StatusBadGateway, "Down-stream API error")
	}
}

func (h *EntityHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Healthy: true, Coordinators: []CoordinatorHealth{}}

	for _, p := range h.registry.Platforms() {
		if p.Coordinator == nil {
			continue
		}

		ch := CoordinatorHealth{
			Name:        p.Name,
			Healthy:     p.Coordinator.LastUpdateSuccess(),
			LastUpdated: strfmt.DateTime(p.Coordinator.LastUpdate()),
			Entities:    len(p.Players),
		}
		if err := p.Coordinator.LastError(); err != nil {
			ch.LastError = err.Error()
		}

		resp.Healthy = resp.Healthy && ch.Healthy
		resp.Coordinators = append(resp.Coordinators, ch)
	}

	status := http.StatusOK
	if !resp.Healthy {
		status = http.StatusServiceUnavailable
	}

	sendJSONResponse(w, r, status, resp)
}
