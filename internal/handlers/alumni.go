package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/alva-alumni/apiserver/internal/apperr"
	"github.com/alva-alumni/apiserver/internal/services"
	"github.com/alva-alumni/apiserver/internal/storage"
	"github.com/alva-alumni/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	formFieldPhoto     = "photo"
	maxMultipartMemory = 8 << 20
	maxUploadBytes     = storage.MaxPhotoSize + 1<<20
)

var (
	errTokenRequired = apperr.Validation("Token is required")
	errInvalidPage   = apperr.Validation("Invalid page")
	errInvalidLimit  = apperr.Validation("Invalid limit")
	errPhotoRequired = apperr.Validation("Photo is required")
	errUnauthorized  = apperr.Unauthenticated("Access token required")
)

// profileFields maps accepted update keys to their setters. Both camelCase
// and snake_case spellings are accepted for the optional fields; camelCase
// wins when both are present.
var profileFields = []struct {
	keys []string
	set  func(*types.ProfileUpdate, *string)
}{
	{[]string{"name"}, func(u *types.ProfileUpdate, v *string) { u.Name = v }},
	{[]string{"phone"}, func(u *types.ProfileUpdate, v *string) { u.Phone = v }},
	{[]string{"city"}, func(u *types.ProfileUpdate, v *string) { u.City = v }},
	{[]string{"state"}, func(u *types.ProfileUpdate, v *string) { u.State = v }},
	{[]string{"country"}, func(u *types.ProfileUpdate, v *string) { u.Country = v }},
	{[]string{"pincode"}, func(u *types.ProfileUpdate, v *string) { u.Pincode = v }},
	{[]string{"currentPosition", "current_position"}, func(u *types.ProfileUpdate, v *string) { u.CurrentPosition = v }},
	{[]string{"currentCompany", "current_company"}, func(u *types.ProfileUpdate, v *string) { u.CurrentCompany = v }},
	{[]string{"profilePhotoUrl", "profile_photo_url"}, func(u *types.ProfileUpdate, v *string) { u.ProfilePhotoURL = v }},
}

// AlumniHandler serves profile access and the directory.
type AlumniHandler struct {
	alumniService *services.AlumniService
	exposeStack   bool
}

func NewAlumniHandler(alumniService *services.AlumniService, exposeStack bool) *AlumniHandler {
	return &AlumniHandler{alumniService: alumniService, exposeStack: exposeStack}
}

// AlumniRouter registers alumni routes. requireAuth guards every route except
// profile-by-token; the photo route is only mounted when uploads are enabled.
func AlumniRouter(r chi.Router, handler *AlumniHandler, requireAuth func(http.Handler) http.Handler, photoUploads bool) {
	r.Post("/profile-by-token", handler.GetProfileByToken)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/profile", handler.GetProfile)
		r.Put("/profile", handler.UpdateProfile)
		r.Get("/all", handler.ListAlumni)
		if photoUploads {
			r.Put("/profile/photo", handler.UploadPhoto)
		}
	})
}

type ProfileResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Alumni  types.Alumni `json:"alumni"`
}

type DirectoryResponse struct {
	Success bool `json:"success"`
	types.DirectoryPage
}

type ProfileByTokenRequest struct {
	Token string `json:"token"`
}

func (h *AlumniHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, r, errUnauthorized, h.exposeStack)
		return
	}

	alumni, err := h.alumniService.GetProfile(r.Context(), claims.ID)
	if err != nil {
		respondError(w, r, err, h.exposeStack)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Success: true, Alumni: alumni})
}

// GetProfileByToken resolves a token passed in the body. It is not behind
// RequireAuth and reports token failures as 401.
func (h *AlumniHandler) GetProfileByToken(w http.ResponseWriter, r *http.Request) {
	var req ProfileByTokenRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, err, h.exposeStack)
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		respondError(w, r, errTokenRequired, h.exposeStack)
		return
	}

	alumni, err := h.alumniService.GetProfileByToken(r.Context(), req.Token)
	if err != nil {
		respondError(w, r, err, h.exposeStack)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Success: true, Alumni: alumni})
}

// UpdateProfile applies the allow-listed fields of the body and ignores the rest.
func (h *AlumniHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, r, errUnauthorized, h.exposeStack)
		return
	}

	var body map[string]json.RawMessage
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, r, err, h.exposeStack)
		return
	}
	update, err := parseProfileUpdate(body)
	if err != nil {
		respondError(w, r, err, h.exposeStack)
		return
	}

	alumni, err := h.alumniService.UpdateProfile(r.Context(), claims.ID, update)
	if err != nil {
		respondError(w, r, err, h.exposeStack)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{
		Success: true,
		Message: "Profile updated successfully",
		Alumni:  alumni,
	})
}

// ListAlumni returns a page of the approved-alumni directory.
func (h *AlumniHandler) ListAlumni(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		respondError(w, r, err, h.exposeStack)
		return
	}

	query := r.URL.Query()
	result, err := h.alumniService.ListApproved(r.Context(), services.DirectoryQuery{
		Search: strings.TrimSpace(query.Get("search")),
		Batch:  strings.TrimSpace(query.Get("batch")),
		Course: strings.TrimSpace(query.Get("course")),
		Branch: strings.TrimSpace(query.Get("branch")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		respondError(w, r, err, h.exposeStack)
		return
	}
	writeJSON(w, http.StatusOK, DirectoryResponse{Success: true, DirectoryPage: result})
}

// UploadPhoto replaces the caller's profile photo with the multipart "photo" file.
func (h *AlumniHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, r, errUnauthorized, h.exposeStack)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, services.ErrPhotoTooLarge.Wrap(err), h.exposeStack)
			return
		}
		respondError(w, r, errInvalidBody.Wrap(err), h.exposeStack)
		return
	}
	file, _, err := r.FormFile(formFieldPhoto)
	if err != nil {
		respondError(w, r, errPhotoRequired.Wrap(err), h.exposeStack)
		return
	}
	defer file.Close()

	data, err := readFileLimited(file, storage.MaxPhotoSize)
	if err != nil {
		respondError(w, r, err, h.exposeStack)
		return
	}

	alumni, err := h.alumniService.UploadPhoto(r.Context(), claims.ID, data)
	if err != nil {
		respondError(w, r, err, h.exposeStack)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{
		Success: true,
		Message: "Profile photo updated successfully",
		Alumni:  alumni,
	})
}

func parsePagination(r *http.Request) (page, limit int, err error) {
	page = 1
	limit = services.DefaultPageSize

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, errInvalidPage
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, errInvalidLimit
		}
	}
	limit = min(limit, services.MaxPageSize)
	if page-1 > math.MaxInt/limit {
		return 0, 0, errInvalidPage
	}
	return page, limit, nil
}

// parseProfileUpdate picks the allow-listed keys out of a raw JSON object.
// Null values are skipped; non-string values reject the whole body.
func parseProfileUpdate(body map[string]json.RawMessage) (types.ProfileUpdate, error) {
	var update types.ProfileUpdate
	for _, field := range profileFields {
		for _, key := range field.keys {
			raw, ok := body[key]
			if !ok {
				continue
			}
			var value *string
			if err := json.Unmarshal(raw, &value); err != nil {
				return types.ProfileUpdate{}, errInvalidBody.Wrap(err)
			}
			if value != nil {
				field.set(&update, value)
				break
			}
		}
	}
	return update, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, errInvalidBody.Wrap(err)
	}
	if int64(len(data)) > limit {
		return nil, services.ErrPhotoTooLarge
	}
	return data, nil
}
