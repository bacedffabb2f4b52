package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"roadbook/internal/update/models"
	dErrors "roadbook/pkg/domain-errors"
)

type UpdateService interface {
	UpdatesAfterVersion(ctx context.Context, q models.Query) ([]models.Update, int, error)
}

type UpdateHandler struct {
	updates UpdateService
}

func NewUpdateHandler(updates UpdateService) *UpdateHandler {
	return &UpdateHandler{updates: updates}
}

func (h *UpdateHandler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err1 := strconv.Atoi(query.Get("page"))
	limit, err2 := strconv.Atoi(query.Get("limit"))
	if err1 != nil || err2 != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "page and limit must be integers"))
		return
	}

	q := models.Query{Version: query.Get("version"), Page: page, Limit: limit}
	updates, total, err := h.updates.UpdatesAfterVersion(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	if updates == nil {
		updates = []models.Update{}
	}
	writeJSON(w, http.StatusOK, paginated[models.Update]{Data: updates, Total: total, Page: page})
}
