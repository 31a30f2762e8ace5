package voting_api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-lunch/internal/auth"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/utils"
	"ms-lunch/internal/voting"
)

type Handler struct {
	Service *voting.Service
	Logger  *logger.Logger
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/voting", func(r chi.Router) {
		r.Get("/available", h.Available)
		r.Post("/vote", h.CastVote)
		r.Get("/has-voted", h.HasVoted)
		r.Get("/results", h.Results)
		r.Get("/is-active", h.IsActive)

		r.With(auth.RequireAdmin).Post("/close", h.Close)
	})
}

func (h *Handler) Available(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	restaurants, err := h.Service.AvailableRestaurants(r.Context(), date)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"restaurants": restaurants})
}

type voteRequest struct {
	RestaurantID string `json:"restaurant_id"`
}

func (h *Handler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	receipt, err := h.Service.CastVote(r.Context(), auth.UserID(r.Context()), req.RestaurantID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Vote recorded", map[string]interface{}{
		"vote":       receipt.Vote,
		"vote_count": receipt.VoteCount,
		"date":       receipt.PeriodDate,
	})
}

func (h *Handler) HasVoted(w http.ResponseWriter, r *http.Request) {
	voted, err := h.Service.HasUserVoted(r.Context(), auth.UserID(r.Context()), r.URL.Query().Get("date"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"has_voted": voted})
}

func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.Results(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", res)
}

func (h *Handler) IsActive(w http.ResponseWriter, r *http.Request) {
	active, err := h.Service.IsVotingActive(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"is_active": active})
}

type closeRequest struct {
	Date string `json:"date"`
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if r.ContentLength > 0 {
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.WriteError(w, err)
			return
		}
	}
	winner, err := h.Service.CloseVoting(r.Context(), req.Date)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	h.Logger.LogSecurity("VOTING_CLOSED", "Voting closed by "+auth.UserID(r.Context()))
	utils.WriteSuccess(w, http.StatusOK, "Voting closed", map[string]interface{}{"winner": winner})
}
