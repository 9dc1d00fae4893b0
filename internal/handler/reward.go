package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/calluna/rewardbox/internal/catalog"
	"github.com/calluna/rewardbox/internal/model"
	"github.com/calluna/rewardbox/internal/store"
	"github.com/calluna/rewardbox/internal/websocket"
)

type RewardHandler struct {
	rewards *store.RewardStore
	cache   *catalog.Cache
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewRewardHandler(rewards *store.RewardStore, cache *catalog.Cache, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewards: rewards, cache: cache, hub: hub, logger: logger}
}

func (h *RewardHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type rewardRequest struct {
	ItemID               string   `json:"item_id"`
	Type                 string   `json:"type"`
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	ImageURL             string   `json:"image_url"`
	PriceExp             int      `json:"price_exp"`
	Stock                *int     `json:"stock"`
	RequiredLevel        *int     `json:"required_level"`
	LimitPerUser         *int     `json:"limit_per_user"`
	BoostDurationMinutes *int     `json:"boost_duration_minutes"`
	BoostMultiplier      *float64 `json:"boost_multiplier"`
	Active               bool     `json:"active"`
}

func (req *rewardRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	req.ItemID = strings.TrimSpace(req.ItemID)
	if req.Name == "" {
		return "name is required"
	}
	if req.ItemID == "" {
		return "item_id is required"
	}
	if !model.RewardType(req.Type).Valid() {
		return "unknown reward type"
	}
	if req.PriceExp < 0 {
		return "price_exp must be >= 0"
	}
	if req.Stock != nil && *req.Stock < 0 {
		return "stock must be >= 0 or omitted for unlimited"
	}
	if req.RequiredLevel != nil && *req.RequiredLevel < 1 {
		return "required_level must be >= 1"
	}
	if req.LimitPerUser != nil && *req.LimitPerUser < 1 {
		return "limit_per_user must be >= 1"
	}
	if model.RewardType(req.Type) == model.RewardBoost {
		if req.BoostDurationMinutes == nil || *req.BoostDurationMinutes < 1 {
			return "boost_duration_minutes must be >= 1 for boosts"
		}
		if req.BoostMultiplier == nil || *req.BoostMultiplier <= 0 {
			return "boost_multiplier must be > 0 for boosts"
		}
	}
	return ""
}

func (req *rewardRequest) toModel() model.Reward {
	return model.Reward{
		ItemID:               req.ItemID,
		Type:                 model.RewardType(req.Type),
		Name:                 req.Name,
		Description:          req.Description,
		ImageURL:             req.ImageURL,
		PriceExp:             req.PriceExp,
		Stock:                req.Stock,
		RequiredLevel:        req.RequiredLevel,
		LimitPerUser:         req.LimitPerUser,
		BoostDurationMinutes: req.BoostDurationMinutes,
		BoostMultiplier:      req.BoostMultiplier,
		Active:               req.Active,
	}
}

// Create handles the admin catalog insert.
func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	reward, err := h.rewards.Create(req.toModel())
	if err != nil {
		h.logger.Error("create reward", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create reward"})
		return
	}

	h.cache.Invalidate()
	h.broadcast(websocket.NewMessage("reward", "created", strconv.FormatInt(reward.ID, 10), nil))

	writeJSON(w, http.StatusCreated, reward)
}

// List returns the active catalog through the read cache.
func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.cache.Active()
	if err != nil {
		h.logger.Error("list rewards", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list rewards"})
		return
	}
	writeJSON(w, http.StatusOK, rewards)
}

// ListAll returns every catalog entry, inactive included, for the admin view.
// Reads the store directly; the cache only serves the browse path.
func (h *RewardHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewards.List()
	if err != nil {
		h.logger.Error("list all rewards", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list rewards"})
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	reward, err := h.rewards.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get reward"})
		return
	}
	if reward == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.rewards.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get reward"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	reward, err := h.rewards.Update(id, req.toModel())
	if err != nil {
		h.logger.Error("update reward", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update reward"})
		return
	}

	h.cache.Invalidate()
	h.broadcast(websocket.NewMessage("reward", "updated", strconv.FormatInt(id, 10), nil))

	writeJSON(w, http.StatusOK, reward)
}

// Deactivate hides a reward from the catalog. Catalog rows are never deleted
// because redemption history references them.
func (h *RewardHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.rewards.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get reward"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return
	}

	if err := h.rewards.Deactivate(id); err != nil {
		h.logger.Error("deactivate reward", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to deactivate reward"})
		return
	}

	h.cache.Invalidate()
	h.broadcast(websocket.NewMessage("reward", "deactivated", strconv.FormatInt(id, 10), nil))

	w.WriteHeader(http.StatusNoContent)
}
