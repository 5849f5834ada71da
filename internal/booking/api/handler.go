package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// UserStore is the slice of persistence the setup and login endpoints
// need.
type UserStore interface {
	CreatePortalUser(ctx context.Context, u *models.PortalUser) error
	GetPortalUserByEmail(ctx context.Context, email string) (*models.PortalUser, error)
}

type Handler struct {
	Service *booking.Service
	Users   UserStore
	Config  *config.Config
	Logger  *logger.Logger
}

func NewHandler(service *booking.Service, users UserStore, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Users:   users,
		Config:  cfg,
		Logger:  log,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, details interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
		"details": details,
	})
}

// mapServiceError translates workflow errors into HTTP responses. Honeypot
// rejections deliberately look identical to any other bad request.
func (h *Handler) mapServiceError(w http.ResponseWriter, err error) {
	var vErr *booking.ValidationError
	var rlErr *booking.RateLimitError

	switch {
	case errors.Is(err, booking.ErrHoneypot):
		h.writeError(w, http.StatusBadRequest, "Invalid submission", nil)
	case errors.As(err, &vErr):
		h.writeError(w, http.StatusBadRequest, "Validation failed", vErr.Fields)
	case errors.As(err, &rlErr):
		h.writeError(w, http.StatusTooManyRequests,
			fmt.Sprintf("Please wait %s before submitting again", rlErr.RetryAfter.Round(time.Second)), nil)
	case errors.Is(err, booking.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		h.writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

// Submit handles the public booking intake form.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	b, err := h.Service.Submit(r.Context(), req)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Submit rejected: %v", err))
		h.mapServiceError(w, err)
		return
	}

	h.Logger.LogAPI("POST", "/bookings", "201", b.ID)
	h.writeJSON(w, http.StatusCreated, b)
}

// CaptureLead handles marketing lead capture.
func (h *Handler) CaptureLead(w http.ResponseWriter, r *http.Request) {
	var req models.LeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	lead, err := h.Service.CaptureLead(r.Context(), req)
	if err != nil {
		h.mapServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, lead)
}

// ListBookings returns bookings, optionally filtered by ?status=.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	status := models.BookingStatus(r.URL.Query().Get("status"))

	bookings, err := h.Service.ListBookings(r.Context(), status)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListBookings failed: %v", err))
		h.writeError(w, http.StatusInternalServerError, "Failed to list bookings", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, bookings)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "bookingID")

	b, err := h.Service.GetBooking(r.Context(), id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Booking not found", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

// GetByToken resolves a booking from its approval token. This powers the
// client-facing portal deep link, so it is unauthenticated.
func (h *Handler) GetByToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	b, err := h.Service.GetBookingByToken(r.Context(), token)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Booking not found", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

type decisionRequest struct {
	ApprovedPrice float64 `json:"approved_price,omitempty"`
	CounterPrice  float64 `json:"counter_price,omitempty"`
	AdminNotes    string  `json:"admin_notes,omitempty"`
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "bookingID")

	var req decisionRequest
	if r.Body != nil {
		// An empty body approves at the requested price
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	b, err := h.Service.Approve(r.Context(), id, req.ApprovedPrice, req.AdminNotes)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Approve %s failed: %v", id, err))
		h.mapDecisionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

func (h *Handler) Counter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "bookingID")

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	b, err := h.Service.Counter(r.Context(), id, req.CounterPrice, req.AdminNotes)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Counter %s failed: %v", id, err))
		h.mapDecisionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "bookingID")

	var req decisionRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	b, err := h.Service.Reject(r.Context(), id, req.AdminNotes)
	if err != nil {
		h.mapDecisionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "bookingID")

	b, err := h.Service.Archive(r.Context(), id)
	if err != nil {
		h.mapDecisionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

// RetryProvisioning re-runs the approval fan-out for steps that failed.
func (h *Handler) RetryProvisioning(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "bookingID")

	steps, err := h.Service.RetryProvisioning(r.Context(), id)
	if err != nil {
		h.mapDecisionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, steps)
}

func (h *Handler) ProvisionSteps(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "bookingID")

	steps, err := h.Service.ProvisionSteps(r.Context(), id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to load provisioning steps", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, steps)
}

// mapDecisionError keeps 404 for bookings that genuinely do not exist;
// a store failure mid-decision is a 500, not a missing booking.
func (h *Handler) mapDecisionError(w http.ResponseWriter, err error) {
	var vErr *booking.ValidationError
	switch {
	case errors.Is(err, booking.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.As(err, &vErr):
		h.writeError(w, http.StatusBadRequest, "Validation failed", vErr.Fields)
	case errors.Is(err, sql.ErrNoRows):
		h.writeError(w, http.StatusNotFound, "Booking not found", nil)
	default:
		h.writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

// ---------------- BOOTSTRAP ----------------

type setupRequest struct {
	SetupKey string `json:"setup_key"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Setup is the one-time bootstrap endpoint that creates the first admin
// portal user. It is gated by a deployment-level setup key.
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if h.Config.Bootstrap.SetupKey == "" || req.SetupKey != h.Config.Bootstrap.SetupKey {
		h.Logger.LogSecurity("SETUP_DENIED", "setup attempted with invalid key")
		h.writeError(w, http.StatusForbidden, "Invalid setup key", nil)
		return
	}
	if req.Email == "" || len(req.Password) < 8 {
		h.writeError(w, http.StatusBadRequest, "Email and a password of at least 8 characters are required", nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to create admin user", nil)
		return
	}

	admin := &models.PortalUser{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         "admin",
		CreatedAt:    time.Now(),
	}
	if err := h.Users.CreatePortalUser(r.Context(), admin); err != nil {
		h.writeError(w, http.StatusConflict, "Admin user already exists", nil)
		return
	}

	h.Logger.LogSecurity("SETUP", fmt.Sprintf("admin user %s created", admin.Email))
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": admin.ID, "email": admin.Email})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a portal user and issues a JWT.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	user, err := h.Users.GetPortalUserByEmail(r.Context(), req.Email)
	if err != nil || user == nil {
		h.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("unknown user %s", req.Email))
		h.writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("bad password for %s", req.Email))
		h.writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := auth.IssueToken(h.Config.Bootstrap.AdminJWTSecret, user.ID, user.Role, 24*time.Hour)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to issue token", nil)
		return
	}

	h.Logger.LogSecurity("LOGIN", fmt.Sprintf("user %s (%s) logged in", user.Email, user.Role))
	h.writeJSON(w, http.StatusOK, map[string]string{
		"token": token,
		"role":  user.Role,
	})
}
