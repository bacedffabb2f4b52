package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"roadbook/internal/document"
	"roadbook/internal/workday/models"
	dErrors "roadbook/pkg/domain-errors"
)

type WorkdayService interface {
	MonthWorkdays(ctx context.Context, driverID uuid.UUID, q models.MonthQuery) ([]models.Workday, error)
	PeriodWorkdays(ctx context.Context, driverID uuid.UUID, q models.PeriodQuery) ([]models.Workday, int, error)
	Create(ctx context.Context, driverID uuid.UUID, req models.CreateRequest) (*models.Workday, error)
	Update(ctx context.Context, driverID uuid.UUID, req models.UpdateRequest) (*models.Workday, error)
	SoftDelete(ctx context.Context, driverID uuid.UUID, date models.Date) (*models.Garbage, error)
	Restore(ctx context.Context, driverID uuid.UUID, date models.Date) error
	Garbage(ctx context.Context, driverID uuid.UUID) ([]models.Garbage, error)
	DocumentYears(ctx context.Context, driverID uuid.UUID) ([]int, error)
	DocumentMonths(ctx context.Context, driverID uuid.UUID, year int) ([]int, error)
	MonthlyReport(ctx context.Context, req document.MonthlyReportRequest) ([]byte, error)
}

type WorkdayHandler struct {
	workdays WorkdayService
	drivers  DriverService
}

func NewWorkdayHandler(workdays WorkdayService, drivers DriverService) *WorkdayHandler {
	return &WorkdayHandler{workdays: workdays, drivers: drivers}
}

func (h *WorkdayHandler) handleMonth(w http.ResponseWriter, r *http.Request) {
	claims, _ := DriverClaims(r.Context())
	month, err1 := strconv.Atoi(r.URL.Query().Get("month"))
	year, err2 := strconv.Atoi(r.URL.Query().Get("year"))
	if err1 != nil || err2 != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "month and year must be integers"))
		return
	}

	workdays, err := h.workdays.MonthWorkdays(r.Context(), claims.ID, models.MonthQuery{Month: month, Year: year})
	if err != nil {
		writeError(w, err)
		return
	}
	if workdays == nil {
		workdays = []models.Workday{}
	}
	writeJSON(w, http.StatusOK, workdays)
}

func (h *WorkdayHandler) handlePeriod(w http.ResponseWriter, r *http.Request) {
	claims, _ := DriverClaims(r.Context())
	query := r.URL.Query()

	from, err := models.ParseDate(query.Get("from"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "from must be a date (YYYY-MM-DD)"))
		return
	}
	to, err := models.ParseDate(query.Get("to"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "to must be a date (YYYY-MM-DD)"))
		return
	}
	page, err1 := strconv.Atoi(query.Get("page"))
	limit, err2 := strconv.Atoi(query.Get("limit"))
	if err1 != nil || err2 != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "page and limit must be integers"))
		return
	}

	q := models.PeriodQuery{From: from, To: to, Page: page, Limit: limit}
	workdays, total, err := h.workdays.PeriodWorkdays(r.Context(), claims.ID, q)
	if err != nil {
		writeError(w, err)
		return
	}
	if workdays == nil {
		workdays = []models.Workday{}
	}
	writeJSON(w, http.StatusOK, paginated[models.Workday]{Data: workdays, Total: total, Page: page})
}

func (h *WorkdayHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	claims, _ := DriverClaims(r.Context())
	var req models.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	wd, err := h.workdays.Create(r.Context(), claims.ID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wd)
}

func (h *WorkdayHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	claims, _ := DriverClaims(r.Context())
	var req models.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	wd, err := h.workdays.Update(r.Context(), claims.ID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wd)
}

// handleDelete soft deletes: the workday is shadowed by a garbage row and
// stays restorable for the retention window.
func (h *WorkdayHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	claims, _ := DriverClaims(r.Context())
	date, err := models.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "date must be YYYY-MM-DD"))
		return
	}

	garbage, err := h.workdays.SoftDelete(r.Context(), claims.ID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, garbage)
}

func (h *WorkdayHandler) handleGarbageList(w http.ResponseWriter, r *http.Request) {
	claims, _ := DriverClaims(r.Context())
	garbage, err := h.workdays.Garbage(r.Context(), claims.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if garbage == nil {
		garbage = []models.Garbage{}
	}
	writeJSON(w, http.StatusOK, garbage)
}

func (h *WorkdayHandler) handleRestore(w http.ResponseWriter, r *http.Request) {
	claims, _ := DriverClaims(r.Context())
	date, err := models.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "date must be YYYY-MM-DD"))
		return
	}

	if err := h.workdays.Restore(r.Context(), claims.ID, date); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WorkdayHandler) handleDocumentYears(w http.ResponseWriter, r *http.Request) {
	claims, _ := DriverClaims(r.Context())
	years, err := h.workdays.DocumentYears(r.Context(), claims.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if years == nil {
		years = []int{}
	}
	writeJSON(w, http.StatusOK, years)
}

func (h *WorkdayHandler) handleDocumentMonths(w http.ResponseWriter, r *http.Request) {
	claims, _ := DriverClaims(r.Context())
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "year must be an integer"))
		return
	}

	months, err := h.workdays.DocumentMonths(r.Context(), claims.ID, year)
	if err != nil {
		writeError(w, err)
		return
	}
	if months == nil {
		months = []int{}
	}
	writeJSON(w, http.StatusOK, months)
}

func (h *WorkdayHandler) handleMonthlyDocument(w http.ResponseWriter, r *http.Request) {
	claims, _ := DriverClaims(r.Context())
	year, err1 := strconv.Atoi(chi.URLParam(r, "year"))
	month, err2 := strconv.Atoi(chi.URLParam(r, "month"))
	if err1 != nil || err2 != nil || month < 1 || month > 12 {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid year or month"))
		return
	}

	// The language is not in the token claims; load it for the renderer.
	driver, err := h.drivers.GetByID(r.Context(), claims.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	pdf, err := h.workdays.MonthlyReport(r.Context(), document.MonthlyReportRequest{
		DriverID:  claims.ID,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Language:  driver.Language,
		Month:     month,
		Year:      year,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if pdf == nil {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "no document for this month"))
		return
	}

	filename := fmt.Sprintf("workdays-%d-%02d.pdf", year, month)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
