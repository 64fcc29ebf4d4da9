package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/careassist/webgate/internal/domain/auth"
	"github.com/careassist/webgate/internal/service"
)

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Controller *service.Controller
	Logger     *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Login handles credential sign-in.
// POST /auth/login?redirect=<optional_path>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_credentials",
			Err:     errors.New("email and password are required"),
		})
		return
	}

	st, err := h.Controller.Login(r.Context(), service.CredentialsInput{
		SessionKey: SessionKeyFromRequest(r),
		Email:      req.Email,
		Password:   req.Password,
		Cookie:     service.CookieTarget{W: w, R: r},
	})
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	h.writeSessionEstablished(w, r, st)
}

// Register handles account creation.
// POST /auth/register?redirect=<optional_path>.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_fields",
			Err:     errors.New("email, password, and name are required"),
		})
		return
	}

	st, err := h.Controller.Register(r.Context(), service.CredentialsInput{
		SessionKey: SessionKeyFromRequest(r),
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		Cookie:     service.CookieTarget{W: w, R: r},
	})
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	h.writeSessionEstablished(w, r, st)
}

// Logout tears the session down. The response always reports success: the
// local sign-out has already happened whatever the server said.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	key := SessionKeyFromRequest(r)
	h.Controller.Logout(r.Context(), key, service.CookieTarget{W: w, R: r})

	if IsHTMX(r) {
		SetHXRedirect(w, "/login")
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":      "success",
		"redirect_to": "/login",
	})
}

// Status returns the current authentication state without forcing a check.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	key := SessionKeyFromRequest(r)
	st := h.Controller.State(key, domainauth.FamilyProtected)
	if !st.Authenticated() {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"id":    st.User.ID,
			"email": st.User.Email,
			"name":  st.User.Name,
			"roles": st.User.Roles.Slice(),
		},
	})
}

// writeSessionEstablished answers a successful login or register. The client
// is told to wait before navigating so the cookie mirror has time to land;
// navigating immediately can race the edge guard into seeing no cookie.
func (h *AuthHandlers) writeSessionEstablished(w http.ResponseWriter, r *http.Request, st domainauth.State) {
	redirect := safeRedirectPath(r.URL.Query().Get("redirect"))
	if redirect == "/" {
		redirect = "/dashboard"
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":    st.User.ID,
			"email": st.User.Email,
			"name":  st.User.Name,
			"roles": st.User.Roles.Slice(),
		},
		"redirect_to":       redirect,
		"redirect_after_ms": h.Controller.PropagationDelay().Milliseconds(),
	})
}

// writeAuthError converts controller failures into JSON the UI can translate.
func (h *AuthHandlers) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		code := http.StatusUnauthorized
		if authErr.MessageKey == service.MsgServiceUnreachable {
			code = http.StatusBadGateway
		}
		h.logger().WarnContext(r.Context(), "auth operation failed",
			"message_key", authErr.MessageKey, "error", authErr.Err)
		WriteJSON(w, code, map[string]string{"error": authErr.MessageKey})
		return
	}
	h.logger().ErrorContext(r.Context(), "auth operation failed", "error", err)
	WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal_error", Err: err})
}
