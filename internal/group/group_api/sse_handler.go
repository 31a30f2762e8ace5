package group_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-lunch/internal/auth"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
	"ms-lunch/internal/utils"
)

type MembershipChecker interface {
	RequireMember(ctx context.Context, groupID, userID string) (*models.Group, error)
}

type Subscriber interface {
	Subscribe(ctx context.Context, groupID string) <-chan models.DomainEvent
}

// SSEHandler streams a group's domain events to its members.
type SSEHandler struct {
	Groups    MembershipChecker
	Hub       Subscriber
	Logger    *logger.Logger
	Heartbeat time.Duration
}

func NewSSEHandler(groups MembershipChecker, hub Subscriber, log *logger.Logger) *SSEHandler {
	return &SSEHandler{Groups: groups, Hub: hub, Logger: log, Heartbeat: 25 * time.Second}
}

func (h *SSEHandler) HandleGroupEvents(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")
	userID := auth.UserID(r.Context())
	if _, err := h.Groups.RequireMember(r.Context(), groupID, userID); err != nil {
		h.Logger.Warn("SSE", fmt.Sprintf("Rejected stream of %s for %s: %v", groupID, userID, err))
		utils.WriteError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, fmt.Errorf("streaming unsupported"))
		return
	}

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	h.setupSSEHeaders(w)
	ctx := r.Context()
	events := h.Hub.Subscribe(ctx, groupID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"group_id\":%q}\n\n", groupID)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("User %s watching group %s", userID, groupID))

	heartbeat := time.NewTicker(h.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize %s: %v", evt.Type, err))
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", evt.ID, evt.Type, data)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("User %s left group %s stream", userID, groupID))
			return
		}
	}
}

func (h *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
}
