package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"yearn-vaults/internal/logger"
	"yearn-vaults/internal/models"
	"yearn-vaults/internal/notification"
)

// Notifier is the notification service as seen by HTTP.
type Notifier interface {
	Create(ctx context.Context, input notification.CreateInput) (*models.Notification, error)
	UpdateStatus(ctx context.Context, id string, input notification.UpdateInput) (*models.Notification, error)
	List(ctx context.Context, owner string, limit int) ([]*models.Notification, error)
}

// NotificationHandler serves wallet transaction notifications.
type NotificationHandler struct {
	service Notifier
	log     *logger.Logger
}

func NewNotificationHandler(service Notifier, log *logger.Logger) *NotificationHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &NotificationHandler{service: service, log: log}
}

func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input notification.CreateInput
	if err := decodeBody(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	n, err := h.service.Create(r.Context(), input)
	if err != nil {
		if errors.Is(err, notification.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("❌ Create notification: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create notification")
		return
	}

	respondJSON(w, http.StatusCreated, n)
}

// List returns the latest notifications of ?owner=, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if !common.IsHexAddress(owner) {
		respondError(w, http.StatusBadRequest, "owner must be an address")
		return
	}
	limit := parseIntQuery(r, "limit", 50)
	if limit > 100 {
		limit = 100
	}

	list, err := h.service.List(r.Context(), owner, limit)
	if err != nil {
		h.log.Error("❌ List notifications of %s: %v", owner, err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch notifications")
		return
	}
	if list == nil {
		list = []*models.Notification{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": list,
		"total":         len(list),
	})
}

func (h *NotificationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var input notification.UpdateInput
	if err := decodeBody(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	n, err := h.service.UpdateStatus(r.Context(), id, input)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, n)
	case errors.Is(err, notification.ErrInvalidStatus):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, notification.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		status := notFoundOrInternal(err)
		if status == http.StatusNotFound {
			respondError(w, status, "Notification not found")
			return
		}
		h.log.Error("❌ Update notification %s: %v", id, err)
		respondError(w, status, "Failed to update notification")
	}
}
