package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"roadbook/internal/driver/models"
	driversvc "roadbook/internal/driver/service"
	"roadbook/internal/token"
	dErrors "roadbook/pkg/domain-errors"
)

// DriverService is the slice of the driver service the transport layer uses.
type DriverService interface {
	Signup(ctx context.Context, req models.SignupRequest, emailDomainDenylist []string) (*models.Driver, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.Driver, error)
	VerifyAccount(ctx context.Context, driverID uuid.UUID, verifyToken string) (*models.Driver, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	DeleteAccount(ctx context.Context, driverID uuid.UUID) error
	IssueTokens(ctx context.Context, issuer driversvc.TokenIssuer, driver *models.Driver) (string, string, error)
	RefreshTokens(ctx context.Context, issuer driversvc.TokenIssuer, refreshToken string) (string, string, error)
	GetRestPeriods(ctx context.Context, driverID uuid.UUID) ([]models.RestPeriod, error)
	SetRestPeriods(ctx context.Context, driverID uuid.UUID, periods []models.RestPeriod) error
	DeleteRestPeriods(ctx context.Context, driverID uuid.UUID) error
}

// MailService sends the account verification mail.
type MailService interface {
	SendVerification(ctx context.Context, driver *models.Driver) error
}

type DriverHandler struct {
	drivers  DriverService
	mail     MailService
	issuer   *token.Issuer
	denylist []string
	logger   *slog.Logger
}

func NewDriverHandler(drivers DriverService, mail MailService, issuer *token.Issuer, denylist []string, logger *slog.Logger) *DriverHandler {
	return &DriverHandler{
		drivers:  drivers,
		mail:     mail,
		issuer:   issuer,
		denylist: denylist,
		logger:   logger,
	}
}

type driverResponse struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstname"`
	LastName  string    `json:"lastname"`
	Email     string    `json:"email"`
	Language  string    `json:"language"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResponse struct {
	Driver      driverResponse `json:"driver"`
	AccessToken string         `json:"access_token"`
}

func toDriverResponse(d *models.Driver) driverResponse {
	return driverResponse{
		ID:        d.ID,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Email:     d.Email,
		Language:  d.Language,
		Verified:  d.Verified(),
		CreatedAt: d.CreatedAt,
	}
}

// handleSignup registers the driver, mails the verification token, and
// opens a session in one round trip.
func (h *DriverHandler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	driver, err := h.drivers.Signup(r.Context(), req, h.denylist)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.mail.SendVerification(r.Context(), driver); err != nil {
		// The account exists; the client can request a fresh mail.
		h.logger.ErrorContext(r.Context(), "verification mail failed after signup",
			"error", err, "driver_id", driver.ID)
	}

	h.respondSession(w, r, driver, http.StatusCreated)
}

func (h *DriverHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	driver, err := h.drivers.Login(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.respondSession(w, r, driver, http.StatusOK)
}

type verifyRequest struct {
	DriverID uuid.UUID `json:"driver_id"`
	Token    string    `json:"token"`
}

func (h *DriverHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.DriverID == uuid.Nil || req.Token == "" {
		writeError(w, dErrors.New(dErrors.CodeValidation, "driver_id and token must be provided"))
		return
	}

	driver, err := h.drivers.VerifyAccount(r.Context(), req.DriverID, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	// Reissue so the access token carries verified=true.
	h.respondSession(w, r, driver, http.StatusOK)
}

func (h *DriverHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("refresh_token")
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeUnauthorized, "missing refresh token"))
		return
	}

	access, refresh, err := h.drivers.RefreshTokens(r.Context(), h.issuer, cookie.Value)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, h.issuer.RefreshCookie(refresh))
	writeJSON(w, http.StatusOK, map[string]string{"access_token": access})
}

// handleLogout clears the cookie client side. The stored refresh hash stays
// valid until the next issuance overwrites it.
func (h *DriverHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.issuer.LogoutCookie())
	w.WriteHeader(http.StatusNoContent)
}

func (h *DriverHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := DriverClaims(r.Context())
	if !ok {
		writeError(w, dErrors.New(dErrors.CodeUnauthorized, "missing authentication"))
		return
	}
	driver, err := h.drivers.GetByID(r.Context(), claims.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDriverResponse(driver))
}

func (h *DriverHandler) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := DriverClaims(r.Context())
	if !ok {
		writeError(w, dErrors.New(dErrors.CodeUnauthorized, "missing authentication"))
		return
	}
	if err := h.drivers.DeleteAccount(r.Context(), claims.ID); err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, h.issuer.LogoutCookie())
	w.WriteHeader(http.StatusNoContent)
}

func (h *DriverHandler) handleGetRestPeriods(w http.ResponseWriter, r *http.Request) {
	claims, _ := DriverClaims(r.Context())
	periods, err := h.drivers.GetRestPeriods(r.Context(), claims.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if periods == nil {
		periods = []models.RestPeriod{}
	}
	writeJSON(w, http.StatusOK, periods)
}

func (h *DriverHandler) handleSetRestPeriods(w http.ResponseWriter, r *http.Request) {
	claims, _ := DriverClaims(r.Context())
	var periods []models.RestPeriod
	if err := json.NewDecoder(r.Body).Decode(&periods); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.drivers.SetRestPeriods(r.Context(), claims.ID, periods); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DriverHandler) handleDeleteRestPeriods(w http.ResponseWriter, r *http.Request) {
	claims, _ := DriverClaims(r.Context())
	if err := h.drivers.DeleteRestPeriods(r.Context(), claims.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondSession issues a token pair, sets the refresh cookie, and writes
// the driver plus access token.
func (h *DriverHandler) respondSession(w http.ResponseWriter, r *http.Request, driver *models.Driver, status int) {
	access, refresh, err := h.drivers.IssueTokens(r.Context(), h.issuer, driver)
	if err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, h.issuer.RefreshCookie(refresh))
	writeJSON(w, status, sessionResponse{
		Driver:      toDriverResponse(driver),
		AccessToken: access,
	})
}
