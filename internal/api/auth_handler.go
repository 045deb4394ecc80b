package api

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/phrazzld/voicetask/internal/api/shared"
	"github.com/phrazzld/voicetask/internal/config"
	"github.com/phrazzld/voicetask/internal/domain"
	"github.com/phrazzld/voicetask/internal/platform/logger"
	"github.com/phrazzld/voicetask/internal/redact"
	"github.com/phrazzld/voicetask/internal/service"
	"github.com/phrazzld/voicetask/internal/service/auth"
)

const tokenTypeBearer = "bearer"

// AuthHandler handles authentication-related API requests.
type AuthHandler struct {
	users      service.UserService
	jwtService auth.JWTService
	authConfig *config.AuthConfig
	logger     *slog.Logger
	timeFunc   func() time.Time
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(
	users service.UserService,
	jwtService auth.JWTService,
	authConfig *config.AuthConfig,
	logger *slog.Logger,
) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		users:      users,
		jwtService: jwtService,
		authConfig: authConfig,
		logger:     logger.With(slog.String("component", "auth_handler")),
		timeFunc:   time.Now,
	}
}

// Register handles POST /register. The account is created with the user
// role and a token is issued immediately.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req RegisterRequest
	if err := decodeCredentials(r, &req.Username, &req.Password); err != nil {
		HandleAPIError(w, r, err, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	user, err := h.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create user")
		return
	}

	log.Info("user registered", slog.String("user_id", user.ID))
	h.respondWithToken(w, r, http.StatusCreated, user)
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeCredentials(r, &req.Username, &req.Password); err != nil {
		HandleAPIError(w, r, err, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Incorrect username or password",
				err, shared.WithElevatedLogLevel())
			return
		}
		HandleAPIError(w, r, err, "Failed to authenticate user")
		return
	}

	h.respondWithToken(w, r, http.StatusOK, user)
}

// Me handles GET /me and returns the caller's account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, UserResponse{
		ID:       principal.ID,
		Username: principal.Username,
		Role:     principal.Role,
	})
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user *domain.User) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	token, err := h.jwtService.GenerateToken(r.Context(), user)
	if err != nil {
		log.Error("failed to generate token",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", user.ID))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to generate authentication token")
		return
	}

	resp := AuthResponse{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		UserID:      user.ID,
	}
	if h.authConfig != nil && h.authConfig.TokenLifetimeMinutes > 0 {
		lifetime := time.Duration(h.authConfig.TokenLifetimeMinutes) * time.Minute
		resp.ExpiresAt = h.timeFunc().UTC().Add(lifetime).Format(time.RFC3339)
	}
	shared.RespondWithJSON(w, r, status, resp)
}

// decodeCredentials reads username and password from either a JSON body or
// an OAuth2-style form.
func decodeCredentials(r *http.Request, username, password *string) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(nil, r.Body, shared.MaxJSONBodyBytes)
		if err := r.ParseForm(); err != nil {
			return domain.NewValidationError("", "malformed form body", domain.ErrValidation)
		}
		*username = r.PostFormValue("username")
		*password = r.PostFormValue("password")
		return nil
	default:
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := shared.DecodeJSON(r, &body); err != nil {
			if errors.Is(err, shared.ErrEmptyBody) {
				return err
			}
			return domain.NewValidationError("", "malformed JSON body", domain.ErrValidation)
		}
		*username = body.Username
		*password = body.Password
		return nil
	}
}
