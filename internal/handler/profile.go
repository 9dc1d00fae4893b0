package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/calluna/rewardbox/internal/auth"
	"github.com/calluna/rewardbox/internal/model"
	"github.com/calluna/rewardbox/internal/redeem"
	"github.com/calluna/rewardbox/internal/store"
)

type ProfileHandler struct {
	profiles *store.ProfileStore
	engine   *redeem.Engine
	logger   *slog.Logger
}

func NewProfileHandler(profiles *store.ProfileStore, engine *redeem.Engine, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, engine: engine, logger: logger}
}

// Balance returns the caller's profile, creating an empty one on first sight
// so new users read as level 1 with zero EXP.
func (h *ProfileHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	profile, err := h.profiles.Ensure(userID)
	if err != nil {
		h.logger.Error("get balance", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get balance"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Ledger returns the caller's EXP history, newest first.
func (h *ProfileHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	entries, err := h.profiles.Ledger(userID)
	if err != nil {
		h.logger.Error("get ledger", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get ledger"})
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Entitlements returns the digital items the caller owns.
func (h *ProfileHandler) Entitlements(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	ents, err := h.profiles.Entitlements(userID)
	if err != nil {
		h.logger.Error("get entitlements", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get entitlements"})
		return
	}
	if ents == nil {
		ents = []model.Entitlement{}
	}
	writeJSON(w, http.StatusOK, ents)
}

// Boosts returns the caller's currently active boost redemptions.
func (h *ProfileHandler) Boosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	boosts, err := h.engine.ActiveBoosts(userID)
	if err != nil {
		h.logger.Error("get active boosts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get boosts"})
		return
	}
	if boosts == nil {
		boosts = []model.Redemption{}
	}
	writeJSON(w, http.StatusOK, boosts)
}

// GrantExp is the admin credit path — the earn side of the economy feeds EXP
// in through here (or a future import). Negative amounts adjust downward but
// never below zero.
func (h *ProfileHandler) GrantExp(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}

	var req struct {
		Amount int    `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Amount == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be non-zero"})
		return
	}

	reason := model.LedgerReason(req.Reason)
	switch reason {
	case "":
		reason = model.ReasonGrant
	case model.ReasonGrant, model.ReasonAdminAdjust:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reason must be grant or admin_adjust"})
		return
	}

	profile, err := h.profiles.GrantExp(userID, req.Amount, reason)
	if errors.Is(err, store.ErrBalanceNegative) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": store.ErrBalanceNegative.Error()})
		return
	}
	if err != nil {
		h.logger.Error("grant exp", "error", err, "user_id", userID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to grant exp"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// SetLevel mirrors the level the user earned upstream.
func (h *ProfileHandler) SetLevel(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}

	var req struct {
		Level int `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Level < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "level must be >= 1"})
		return
	}

	profile, err := h.profiles.SetLevel(userID, req.Level)
	if err != nil {
		h.logger.Error("set level", "error", err, "user_id", userID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to set level"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
