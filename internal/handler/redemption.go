package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/calluna/rewardbox/internal/auth"
	"github.com/calluna/rewardbox/internal/model"
	"github.com/calluna/rewardbox/internal/redeem"
	"github.com/calluna/rewardbox/internal/store"
	"github.com/calluna/rewardbox/internal/websocket"
)

type RedemptionHandler struct {
	engine      *redeem.Engine
	redemptions *store.RedemptionStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewRedemptionHandler(engine *redeem.Engine, redemptions *store.RedemptionStore, hub *websocket.Hub, logger *slog.Logger) *RedemptionHandler {
	return &RedemptionHandler{engine: engine, redemptions: redemptions, hub: hub, logger: logger}
}

func (h *RedemptionHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// Redeem exchanges the caller's EXP for the reward in the path.
func (h *RedemptionHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	rewardID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		ShippingAddress string `json:"shipping_address"`
	}
	// An empty body is fine for digital rewards.
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
	}

	redemption, err := h.engine.Redeem(r.Context(), userID, rewardID, req.ShippingAddress)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.NewMessage("redemption", "created", redemption.ID, map[string]any{
		"user_id": redemption.UserID,
		"status":  string(redemption.Status),
	}))

	writeJSON(w, http.StatusCreated, redemption)
}

// ListMine returns the caller's redemption history.
func (h *RedemptionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	redemptions, err := h.redemptions.ListByUser(userID)
	if err != nil {
		h.logger.Error("list redemptions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list redemptions"})
		return
	}
	if redemptions == nil {
		redemptions = []model.Redemption{}
	}
	writeJSON(w, http.StatusOK, redemptions)
}

// Get returns one of the caller's redemptions.
func (h *RedemptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	redemption, err := h.redemptions.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("get redemption", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get redemption"})
		return
	}
	if redemption == nil || redemption.UserID != userID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "redemption not found"})
		return
	}
	writeJSON(w, http.StatusOK, redemption)
}

// Cancel reverses one of the caller's pending shipping redemptions.
func (h *RedemptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
	}

	redemption, err := h.engine.Cancel(r.Context(), r.PathValue("id"), userID, req.Reason)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.NewMessage("redemption", "cancelled", redemption.ID, nil))

	writeJSON(w, http.StatusOK, redemption)
}

// ConfirmReceived lets the caller confirm a delivered shipment arrived.
func (h *RedemptionHandler) ConfirmReceived(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	redemption, err := h.engine.ConfirmReceived(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.NewMessage("redemption", "received", redemption.ID, nil))

	writeJSON(w, http.StatusOK, redemption)
}

// Advance is the admin fulfillment step for physical redemptions.
func (h *RedemptionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status         string `json:"status"`
		TrackingNumber string `json:"tracking_number"`
		AdminNotes     string `json:"admin_notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	redemption, err := h.engine.Advance(r.Context(), r.PathValue("id"), model.Status(req.Status), req.TrackingNumber, req.AdminNotes)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.NewMessage("redemption", "advanced", redemption.ID, map[string]any{
		"status": string(redemption.Status),
	}))

	writeJSON(w, http.StatusOK, redemption)
}

// Refund is the admin force-refund for failed fulfillment.
func (h *RedemptionHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AdminNotes string `json:"admin_notes"`
	}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
	}

	redemption, err := h.engine.Refund(r.Context(), r.PathValue("id"), req.AdminNotes)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.NewMessage("redemption", "refunded", redemption.ID, nil))

	writeJSON(w, http.StatusOK, redemption)
}

// ListByStatus returns all redemptions in a status for the admin queue view.
func (h *RedemptionHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	status := model.Status(r.URL.Query().Get("status"))
	if !status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status"})
		return
	}

	redemptions, err := h.redemptions.ListByStatus(status)
	if err != nil {
		h.logger.Error("list redemptions by status", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list redemptions"})
		return
	}
	if redemptions == nil {
		redemptions = []model.Redemption{}
	}
	writeJSON(w, http.StatusOK, redemptions)
}

// Repair runs the consistency repair job. dry_run=true only counts.
func (h *RedemptionHandler) Repair(w http.ResponseWriter, r *http.Request) {
	dryRun := r.URL.Query().Get("dry_run") == "true"

	result, err := h.engine.Repair(r.Context(), dryRun)
	if err != nil {
		h.logger.Error("consistency repair", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "repair failed"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
