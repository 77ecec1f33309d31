package http

import (
	"log/slog"
	"net/http"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/httpio"
	"github.com/dejobratic/storefront/internal/identity/app"
	"github.com/go-chi/chi/v5"
)

// Handler exposes account and user administration endpoints.
type Handler struct {
	service       *app.Service
	tokens        *auth.Tokens
	secureCookies bool
	logger        *slog.Logger
}

func NewHandler(service *app.Service, tokens *auth.Tokens, secureCookies bool, logger *slog.Logger) *Handler {
	return &Handler{service: service, tokens: tokens, secureCookies: secureCookies, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	authenticate := auth.Authenticate(h.tokens, h.logger)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/logout", h.logout)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/me", h.profile)
			r.Put("/me", h.updateProfile)
			r.Put("/password", h.changePassword)
		})
	})

	r.Route("/admin/users", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(auth.RequireRole(h.logger, auth.RoleAdmin))

		r.Get("/", h.listUsers)
		r.Get("/{id}", h.getUser)
		r.Put("/{id}", h.updateRole)
		r.Delete("/{id}", h.deleteUser)
	})
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=25"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updateProfileRequest struct {
	Name  string `json:"name" validate:"omitempty,min=3,max=25"`
	Email string `json:"email" validate:"omitempty,email"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"old_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type updateRoleRequest struct {
	Role auth.Role `json:"role" validate:"required,oneof=user admin"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	session, err := h.service.Register(r.Context(), app.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	h.writeSession(w, http.StatusCreated, session)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	h.writeSession(w, http.StatusOK, session)
}

func (h *Handler) logout(w http.ResponseWriter, _ *http.Request) {
	auth.ClearCookie(w)
	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"message": "logged out"})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	user, err := h.service.Profile(r.Context(), principal.UserID)
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"user": user})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), principal.UserID, req.Name, req.Email)
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"user": user})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	session, err := h.service.ChangePassword(r.Context(), principal.UserID, app.ChangePasswordInput{
		OldPassword:     req.OldPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	h.writeSession(w, http.StatusOK, session)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"users": users, "count": len(users)})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"user": user})
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req updateRoleRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	user, err := h.service.UpdateRole(r.Context(), principal, chi.URLParam(r, "id"), req.Role)
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"user": user})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"message": "user deleted"})
}

// writeSession sets the token cookie and returns the token in the body for
// clients that do not use cookies.
func (h *Handler) writeSession(w http.ResponseWriter, status int, session app.Session) {
	auth.SetCookie(w, session.Token, h.tokens, h.secureCookies)
	httpio.WriteSuccess(w, status, httpio.Envelope{"user": session.User, "token": session.Token})
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpio.WriteError(w, r, h.logger, apperror.Unauthorized("login first to access this resource"))
	}
	return principal, ok
}
