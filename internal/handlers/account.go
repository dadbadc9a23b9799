package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/moodlocation/apiserver/internal/services"
	"github.com/moodlocation/apiserver/internal/store"
	"github.com/moodlocation/apiserver/types"
)

const (
	formFieldImage     = "image"
	maxImageFormMemory = 10 << 20
)

// AccountHandler serves signup, login and profile endpoints.
type AccountHandler struct {
	accountService *services.AccountService
	logger         *slog.Logger
}

// NewAccountHandler constructs an AccountHandler with the provided dependencies.
func NewAccountHandler(accountService *services.AccountService, logger *slog.Logger) *AccountHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// AccountRouter registers signup, login and profile routes on the given router.
func AccountRouter(r chi.Router, accountService *services.AccountService, logger *slog.Logger) {
	handler := NewAccountHandler(accountService, logger)

	r.Post("/signup", handler.Signup)
	r.Post("/login", handler.Login)
	r.Route("/profile/{id}", func(r chi.Router) {
		r.Get("/", handler.GetProfile)
		r.Put("/", handler.UpdateProfile)
		r.Get("/image", handler.GetProfileImage)
		r.Put("/image", handler.UploadProfileImage)
	})
}

// Signup registers a new account.
func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req services.SignupInput
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	if _, err := h.accountService.Signup(r.Context(), req); err != nil {
		var validationErr *services.ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeError(w, http.StatusBadRequest, validationErr.Error())
		case errors.Is(err, services.ErrEmailTaken):
			writeError(w, http.StatusBadRequest, services.ErrEmailTaken.Error())
		default:
			h.logger.ErrorContext(r.Context(), "signup failed", "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "registration successful"})
}

// Login verifies credentials and returns the account summary.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	account, err := h.accountService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, services.ErrInvalidCredentials.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Message: "login successful",
		User:    account.Summary(),
	})
}

// GetProfile returns the account without its password digest.
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountService.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get profile failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch profile")
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// UpdateProfile changes the name, gender and profile image of an account.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req types.ProfileUpdate
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	account, err := h.accountService.UpdateProfile(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		var validationErr *services.ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeError(w, http.StatusBadRequest, validationErr.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			h.logger.ErrorContext(r.Context(), "update profile failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update profile")
		}
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// UploadProfileImage stores a multipart "image" file as the account's avatar.
func (h *AccountHandler) UploadProfileImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageFormMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, errBodyTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(formFieldImage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	account, err := h.accountService.SetProfileImage(r.Context(), chi.URLParam(r, "id"), services.ImageUpload{
		Filename: header.Filename,
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		var validationErr *services.ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeError(w, http.StatusBadRequest, validationErr.Error())
		case errors.Is(err, services.ErrStorageDisabled):
			writeError(w, http.StatusNotImplemented, services.ErrStorageDisabled.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			h.logger.ErrorContext(r.Context(), "upload profile image failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to upload image")
		}
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// GetProfileImage streams the account's stored avatar.
func (h *AccountHandler) GetProfileImage(w http.ResponseWriter, r *http.Request) {
	image, err := h.accountService.OpenProfileImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrStorageDisabled):
			writeError(w, http.StatusNotImplemented, services.ErrStorageDisabled.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "image not found")
		default:
			h.logger.ErrorContext(r.Context(), "open profile image failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to fetch image")
		}
		return
	}
	defer image.Body.Close()

	w.Header().Set("Content-Type", image.ContentType)
	if image.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(image.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if n, err := io.Copy(w, image.Body); err != nil {
		h.logger.WarnContext(r.Context(), "stream profile image interrupted", "key", image.Key, "written", n, "error", err)
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Message string               `json:"message"`
	User    types.AccountSummary `json:"user"`
}
