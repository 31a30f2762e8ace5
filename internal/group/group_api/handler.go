package group_api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-lunch/internal/auth"
	"ms-lunch/internal/group"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/utils"
)

type Handler struct {
	Service *group.Service
	Logger  *logger.Logger
	SSE     *SSEHandler
}

// RegisterRoutes expects the router to run auth.Authenticator.Optional.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/groups", h.ListGroups)
	r.Get("/groups/{groupId}", h.GetGroup)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Post("/groups", h.CreateGroup)
		r.Post("/groups/join-by-invite", h.JoinByInvite)
		r.Post("/groups/{groupId}/join", h.JoinGroup)
		r.Post("/groups/{groupId}/close", h.CloseGroup)
		r.Delete("/groups/{groupId}", h.DeleteGroup)
		r.Get("/groups/{groupId}/invite", h.Invite)
		if h.SSE != nil {
			r.Get("/groups/{groupId}/events", h.SSE.HandleGroupEvents)
		}
	})
}

func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mine, _ := strconv.ParseBool(q.Get("mine"))
	groups, err := h.Service.ListGroups(r.Context(), group.ListQuery{
		ViewerID:   auth.UserID(r.Context()),
		Mine:       mine,
		Visibility: q.Get("visibility"),
		Search:     q.Get("search"),
	})
	if err != nil {
		h.Logger.Error("API", "Failed to list groups: "+err.Error())
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"groups": groups, "count": len(groups)})
}

func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.Service.GetGroup(r.Context(), chi.URLParam(r, "groupId"), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"group": g})
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var in group.CreateGroupInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	g, err := h.Service.CreateGroup(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Group created", map[string]interface{}{"group": g})
}

type joinRequest struct {
	JoinCode string `json:"join_code"`
}

func (h *Handler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if r.ContentLength > 0 {
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.WriteError(w, err)
			return
		}
	}
	g, err := h.Service.JoinGroup(r.Context(), chi.URLParam(r, "groupId"), auth.UserID(r.Context()), req.JoinCode)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Joined group", map[string]interface{}{"group": g})
}

type inviteRequest struct {
	Token string `json:"token"`
}

func (h *Handler) JoinByInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	g, err := h.Service.JoinByInvite(r.Context(), req.Token, auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Joined group", map[string]interface{}{"group": g})
}

func (h *Handler) CloseGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.Service.CloseGroup(r.Context(), chi.URLParam(r, "groupId"), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Group closed", map[string]interface{}{"group": g})
}

func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteGroup(r.Context(), chi.URLParam(r, "groupId"), auth.UserID(r.Context())); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Group deleted", nil)
}

// Invite serves the invite QR code as a PNG; the sealed token is echoed in
// X-Invite-Token for clients that share links instead.
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	png, token, err := h.Service.InviteQR(r.Context(), chi.URLParam(r, "groupId"), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Invite-Token", token)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
