package handlers

import (
	"net/http"

	"github.com/alva-alumni/apiserver/internal/apperr"
	"github.com/alva-alumni/apiserver/internal/services"
	"github.com/alva-alumni/apiserver/internal/validator"
	"github.com/alva-alumni/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const defaultCountry = "India"

// AuthHandler serves registration and login.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validator
	exposeStack bool
}

func NewAuthHandler(authService *services.AuthService, validate *validator.Validator, exposeStack bool) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validate,
		exposeStack: exposeStack,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
}

type RegisterRequest struct {
	Email           string  `json:"email" validate:"required,email" msg:"Invalid email format"`
	Password        string  `json:"password" validate:"min=6" msg:"Password must be at least 6 characters"`
	Name            string  `json:"name" validate:"min=2" msg:"Name must be at least 2 characters"`
	USN             string  `json:"usn" validate:"required" msg:"USN is required"`
	Batch           string  `json:"batch" validate:"required" msg:"Batch is required"`
	Course          string  `json:"course" validate:"required" msg:"Course is required"`
	Branch          string  `json:"branch" validate:"required" msg:"Branch is required"`
	City            string  `json:"city" validate:"required" msg:"City is required"`
	State           string  `json:"state" validate:"required" msg:"State is required"`
	Country         string  `json:"country"`
	Pincode         string  `json:"pincode" validate:"required" msg:"Pincode is required"`
	Phone           string  `json:"phone" validate:"min=10" msg:"Phone number must be at least 10 digits"`
	CurrentPosition *string `json:"currentPosition"`
	CurrentCompany  *string `json:"currentCompany"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" msg:"Invalid email format"`
	Password string `json:"password" validate:"min=6" msg:"Password must be at least 6 characters"`
}

type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

type LoginResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Token   string       `json:"token"`
	Alumni  types.Alumni `json:"alumni"`
}

// Register creates an account pending approval. No token is issued.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.exposeStack)
		return
	}
	if err := h.validate.Validate(req); err != nil {
		respondError(w, r, apperr.Validation(err.Error()), h.exposeStack)
		return
	}
	if req.Country == "" {
		req.Country = defaultCountry
	}

	alumni, err := h.authService.Register(r.Context(), services.Registration{
		Email:           req.Email,
		Password:        req.Password,
		Name:            req.Name,
		USN:             req.USN,
		Batch:           req.Batch,
		Course:          req.Course,
		Branch:          req.Branch,
		City:            req.City,
		State:           req.State,
		Country:         req.Country,
		Pincode:         req.Pincode,
		Phone:           req.Phone,
		CurrentPosition: req.CurrentPosition,
		CurrentCompany:  req.CurrentCompany,
	})
	if err != nil {
		respondError(w, r, err, h.exposeStack)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Success: true,
		Message: "Registration successful! Please wait for approval.",
		ID:      alumni.ID,
	})
}

// Login verifies credentials and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.exposeStack)
		return
	}
	if err := h.validate.Validate(req); err != nil {
		respondError(w, r, apperr.Validation(err.Error()), h.exposeStack)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, err, h.exposeStack)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Success: true,
		Message: "Login successful",
		Token:   result.Token,
		Alumni:  result.Alumni,
	})
}
