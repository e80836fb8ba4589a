package businessflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/app/services"
	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/repository"
	"github.com/amirphl/backoffice/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultCaptchaThreshold is the failed-attempt count after which login needs a solved captcha
const DefaultCaptchaThreshold = 3

// AuthFlow handles staff signup, login and the signed-in session
type AuthFlow interface {
	Signup(ctx context.Context, req *dto.SignupRequest) (*dto.MutationResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest, clientScope string) (*dto.LoginResponseData, error)
	LoginStatus(ctx context.Context, email string) (*dto.LoginFailureData, error)
	Logout(ctx context.Context, accessToken string, req *dto.LogoutRequest) error
	Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.LoginResponseData, error)
	Session(ctx context.Context, userID uint) (*dto.SessionUserDTO, error)
	UpdateOwnProfile(ctx context.Context, userID uint, req *dto.UpdateOwnProfileRequest) (*dto.SessionUserDTO, error)
	RememberedLogin(ctx context.Context, clientScope string) (*dto.RememberedLoginResponse, error)
	Captcha(ctx context.Context) (*dto.CaptchaChallengeResponse, error)
	Settings(ctx context.Context) (map[string]any, error)
	SaveSettings(ctx context.Context, req *dto.SettingsRequest) error
}

// AuthOptions tunes login behaviour
type AuthOptions struct {
	CaptchaThreshold int
	RememberMeTTL    time.Duration
	BcryptCost       int
	Now              func() time.Time
}

// AuthFlowImpl implements the authentication business flow
type AuthFlowImpl struct {
	identityRepo repository.AuthIdentityRepository
	profileRepo  repository.UserProfileRepository
	store        *services.SecureStore
	tokens       services.TokenService
	captcha      services.CaptchaService
	accessLogger *services.AccessLogger
	db           *gorm.DB
	opts         AuthOptions
}

// NewAuthFlow creates a new auth flow instance. captcha may be nil to disable the challenge.
func NewAuthFlow(
	identityRepo repository.AuthIdentityRepository,
	profileRepo repository.UserProfileRepository,
	store *services.SecureStore,
	tokens services.TokenService,
	captcha services.CaptchaService,
	accessLogger *services.AccessLogger,
	db *gorm.DB,
	opts AuthOptions,
) AuthFlow {
	if opts.CaptchaThreshold <= 0 {
		opts.CaptchaThreshold = DefaultCaptchaThreshold
	}
	if opts.RememberMeTTL <= 0 {
		opts.RememberMeTTL = utils.RememberMeTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = utils.UTCNow
	}
	return &AuthFlowImpl{
		identityRepo: identityRepo,
		profileRepo:  profileRepo,
		store:        store,
		tokens:       tokens,
		captcha:      captcha,
		accessLogger: accessLogger,
		db:           db,
		opts:         opts,
	}
}

// Signup creates an identity and a profile waiting for approval
func (f *AuthFlowImpl) Signup(ctx context.Context, req *dto.SignupRequest) (result *dto.MutationResponse, err error) {
	email := utils.NormalizeEmail(req.Email)
	var profile *models.UserProfile
	defer func() {
		auditResult(ctx, f.accessLogger, err, "user", func() {
			f.accessLogger.LogCreate(ctx, "user", services.IDString(profile.ID), email, map[string]any{"status": profile.Status})
		})
		if err != nil {
			err = NewBusinessError("SIGNUP_FAILED", "Signup failed", err)
		}
	}()

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), f.opts.BcryptCost)
	if err != nil {
		return nil, err
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		existing, err := f.identityRepo.ByEmail(txCtx, email)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrEmailAlreadyExists
		}

		identity := &models.AuthIdentity{Email: email, PasswordHash: string(hash)}
		if err := f.identityRepo.Save(txCtx, identity); err != nil {
			return err
		}
		profile = &models.UserProfile{
			AuthIdentityID: identity.ID,
			Email:          email,
			FirstName:      strings.TrimSpace(req.FirstName),
			LastName:       strings.TrimSpace(req.LastName),
			Phone:          req.Phone,
			Department:     req.Department,
			JobTitle:       req.JobTitle,
			Status:         models.UserStatusPendingApproval,
		}
		return f.profileRepo.Save(txCtx, profile)
	})
	if err != nil {
		return nil, err
	}

	return &dto.MutationResponse{ID: profile.ID, Message: "Account created and waiting for approval"}, nil
}

// Login checks lockout and captcha, verifies the password and issues a token pair
func (f *AuthFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, clientScope string) (result *dto.LoginResponseData, err error) {
	email := utils.NormalizeEmail(req.Email)
	defer func() {
		if err != nil {
			err = NewBusinessError("LOGIN_FAILED", "Login failed", err)
		}
	}()

	locked, err := f.store.IsAccountLocked(ctx, email)
	if err != nil {
		return nil, err
	}
	if locked {
		f.securityEvent(ctx, "login_blocked", email)
		return nil, ErrAccountLocked
	}

	if err = f.checkCaptcha(ctx, email, req); err != nil {
		return nil, err
	}

	identity, err := f.identityRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if identity == nil || bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(req.Password)) != nil {
		f.loginFailed(ctx, email, "invalid_credentials")
		return nil, ErrIncorrectPassword
	}

	profile, err := f.profileRepo.ByAuthIdentityID(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		f.loginFailed(ctx, email, "missing_profile")
		return nil, ErrAccountInactive
	}
	if profile, err = f.profileRepo.ByIDWithRole(ctx, profile.ID); err != nil {
		return nil, err
	}
	switch profile.Status {
	case models.UserStatusActive:
	case models.UserStatusPendingApproval:
		f.logLogin(ctx, email, false, map[string]any{"reason": "pending_approval"})
		return nil, ErrAccountPendingApproval
	default:
		f.logLogin(ctx, email, false, map[string]any{"reason": string(profile.Status)})
		return nil, ErrAccountInactive
	}

	if err = f.store.RecordLoginAttempt(ctx, email, true); err != nil {
		return nil, err
	}
	now := f.opts.Now()
	if serr := f.store.SetLastLoginTime(ctx, email, now); serr != nil {
		slog.WarnContext(ctx, "failed to store last login time", "email", email, "error", serr)
	}
	if err = f.profileRepo.UpdateColumns(ctx, profile.ID, map[string]any{"last_login_at": now}); err != nil {
		return nil, err
	}
	if err = f.identityRepo.UpdateColumns(ctx, identity.ID, map[string]any{"last_sign_in_at": now}); err != nil {
		return nil, err
	}
	profile.LastLoginAt = &now

	if clientScope != "" {
		if err = f.store.SaveRememberedLogin(ctx, clientScope, email, req.RememberMe, f.opts.RememberMeTTL); err != nil {
			return nil, err
		}
	}

	result, err = f.issueTokens(profile)
	if err != nil {
		return nil, err
	}
	f.logLogin(utils.WithUser(ctx, profile.ID, email), email, true, map[string]any{"remember_me": req.RememberMe})
	return result, nil
}

func (f *AuthFlowImpl) checkCaptcha(ctx context.Context, email string, req *dto.LoginRequest) error {
	if f.captcha == nil {
		return nil
	}
	failures, err := f.store.FailedAttempts(ctx, email)
	if err != nil {
		return err
	}
	if failures < f.opts.CaptchaThreshold {
		return nil
	}
	if req.CaptchaID == "" || req.CaptchaAngle == nil {
		return ErrCaptchaRequired
	}
	ok, err := f.captcha.VerifyRotate(ctx, req.CaptchaID, *req.CaptchaAngle)
	if err != nil {
		return err
	}
	if !ok {
		f.logLogin(ctx, email, false, map[string]any{"reason": "invalid_captcha"})
		return ErrInvalidCaptcha
	}
	return nil
}

func (f *AuthFlowImpl) loginFailed(ctx context.Context, email, reason string) {
	if err := f.store.RecordLoginAttempt(ctx, email, false); err != nil {
		slog.WarnContext(ctx, "failed to record login attempt", "email", email, "error", err)
	}
	f.logLogin(ctx, email, false, map[string]any{"reason": reason})
	if locked, err := f.store.IsAccountLocked(ctx, email); err == nil && locked {
		f.securityEvent(ctx, "account_locked", email)
	}
}

func (f *AuthFlowImpl) logLogin(ctx context.Context, email string, success bool, details map[string]any) {
	if f.accessLogger != nil {
		f.accessLogger.LogLogin(ctx, email, success, details)
	}
}

func (f *AuthFlowImpl) securityEvent(ctx context.Context, event, email string) {
	if f.accessLogger == nil {
		return
	}
	details := map[string]any{"email": email}
	if until, err := f.store.LockedUntil(ctx, email); err == nil && !until.IsZero() {
		details["locked_until"] = until
	}
	f.accessLogger.LogSecurityEvent(ctx, event, details)
}

// LoginStatus tells the login screen whether the next attempt needs a captcha or is locked out
func (f *AuthFlowImpl) LoginStatus(ctx context.Context, email string) (*dto.LoginFailureData, error) {
	email = utils.NormalizeEmail(email)
	failures, err := f.store.FailedAttempts(ctx, email)
	if err != nil {
		return nil, err
	}
	data := &dto.LoginFailureData{
		FailedAttempts:  failures,
		CaptchaRequired: f.captcha != nil && failures >= f.opts.CaptchaThreshold,
	}
	locked, err := f.store.IsAccountLocked(ctx, email)
	if err != nil {
		return nil, err
	}
	if locked {
		until, err := f.store.LockedUntil(ctx, email)
		if err != nil {
			return nil, err
		}
		data.LockedUntil = &until
	}
	return data, nil
}

func (f *AuthFlowImpl) issueTokens(profile *models.UserProfile) (*dto.LoginResponseData, error) {
	roleName := ""
	if profile.Role != nil {
		roleName = profile.Role.Name
	}
	access, refresh, err := f.tokens.GenerateTokens(profile.ID, profile.Email, roleName)
	if err != nil {
		return nil, err
	}
	ttl := f.tokens.AccessTokenTTL()
	return &dto.LoginResponseData{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(ttl.Seconds()),
		ExpiresAt:    f.opts.Now().Add(ttl),
		User:         toSessionUser(profile),
	}, nil
}

func toSessionUser(p *models.UserProfile) dto.SessionUserDTO {
	out := dto.SessionUserDTO{
		ID:          p.ID,
		Email:       p.Email,
		FullName:    p.FullName(),
		Status:      string(p.Status),
		Permissions: []dto.PermissionDTO{},
		LastLoginAt: p.LastLoginAt,
	}
	if p.Role != nil {
		role := ToRoleDTO(p.Role)
		out.Role = role.Name
		out.RoleLevel = &role.Level
		out.Permissions = role.Permissions
	}
	return out
}

// Logout revokes the access token and, when given, the refresh token
func (f *AuthFlowImpl) Logout(ctx context.Context, accessToken string, req *dto.LogoutRequest) error {
	claims, err := f.tokens.ValidateToken(ctx, accessToken)
	if err != nil {
		return NewBusinessError("LOGOUT_FAILED", "Logout failed", ErrUnauthenticated)
	}
	if err := f.tokens.RevokeToken(ctx, accessToken); err != nil {
		return NewBusinessError("LOGOUT_FAILED", "Logout failed", err)
	}
	if req != nil && req.RefreshToken != "" {
		if err := f.tokens.RevokeToken(ctx, req.RefreshToken); err != nil {
			slog.WarnContext(ctx, "failed to revoke refresh token", "user_id", claims.UserID, "error", err)
		}
	}
	if f.accessLogger != nil {
		f.accessLogger.LogLogout(utils.WithUser(ctx, claims.UserID, claims.Email), claims.Email)
	}
	return nil
}

// Refresh rotates a refresh token for a new pair while the account stays active
func (f *AuthFlowImpl) Refresh(ctx context.Context, req *dto.RefreshRequest) (result *dto.LoginResponseData, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("REFRESH_FAILED", "Token refresh failed", err)
		}
	}()

	claims, err := f.tokens.ValidateToken(ctx, req.RefreshToken)
	if err != nil || claims.TokenType != services.TokenTypeRefresh {
		return nil, ErrInvalidRefreshToken
	}
	profile, err := f.profileRepo.ByIDWithRole(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil || profile.Status != models.UserStatusActive {
		return nil, ErrAccountInactive
	}

	access, refresh, err := f.tokens.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, services.ErrTokenRevoked) || errors.Is(err, services.ErrTokenExpired) || errors.Is(err, services.ErrTokenInvalid) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	ttl := f.tokens.AccessTokenTTL()
	return &dto.LoginResponseData{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(ttl.Seconds()),
		ExpiresAt:    f.opts.Now().Add(ttl),
		User:         toSessionUser(profile),
	}, nil
}

// Session returns the signed-in user with role and permissions
func (f *AuthFlowImpl) Session(ctx context.Context, userID uint) (*dto.SessionUserDTO, error) {
	profile, err := f.profileRepo.ByIDWithRole(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("SESSION_FAILED", "Failed to load session", err)
	}
	if profile == nil {
		return nil, NewBusinessError("SESSION_FAILED", "Failed to load session", ErrUnauthenticated)
	}
	out := toSessionUser(profile)
	return &out, nil
}

// UpdateOwnProfile edits the caller's profile; a new password needs the current one
func (f *AuthFlowImpl) UpdateOwnProfile(ctx context.Context, userID uint, req *dto.UpdateOwnProfileRequest) (result *dto.SessionUserDTO, err error) {
	changed := []string{}
	defer func() {
		auditResult(ctx, f.accessLogger, err, "profile", func() {
			f.accessLogger.LogUpdate(ctx, "profile", services.IDString(userID), result.Email, map[string]any{"fields": changed})
		})
		if err != nil {
			err = NewBusinessError("UPDATE_PROFILE_FAILED", "Failed to update profile", err)
		}
	}()

	profile, err := f.profileRepo.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, notFound(ErrUserNotFound, userID)
	}

	updates := map[string]any{}
	set := func(column string, v *string) {
		if v != nil {
			updates[column] = strings.TrimSpace(*v)
			changed = append(changed, column)
		}
	}
	set("first_name", req.FirstName)
	set("last_name", req.LastName)
	set("phone", req.Phone)
	set("department", req.Department)
	set("job_title", req.JobTitle)
	set("avatar_url", req.AvatarURL)

	var newHash []byte
	if req.NewPassword != nil {
		if req.CurrentPassword == nil || *req.CurrentPassword == "" {
			return nil, ErrCurrentPasswordInvalid
		}
		identity, err := f.identityRepo.ByID(ctx, profile.AuthIdentityID)
		if err != nil {
			return nil, err
		}
		if identity == nil || bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(*req.CurrentPassword)) != nil {
			return nil, ErrCurrentPasswordInvalid
		}
		if newHash, err = bcrypt.GenerateFromPassword([]byte(*req.NewPassword), f.opts.BcryptCost); err != nil {
			return nil, err
		}
		changed = append(changed, "password")
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if len(updates) > 0 {
			if err := f.profileRepo.UpdateColumns(txCtx, userID, updates); err != nil {
				return err
			}
		}
		if newHash != nil {
			return f.identityRepo.UpdateColumns(txCtx, profile.AuthIdentityID, map[string]any{"password_hash": string(newHash)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return f.Session(ctx, userID)
}

// RememberedLogin returns the email remembered for this client, if any
func (f *AuthFlowImpl) RememberedLogin(ctx context.Context, clientScope string) (*dto.RememberedLoginResponse, error) {
	if clientScope == "" {
		return &dto.RememberedLoginResponse{}, nil
	}
	remembered, err := f.store.RememberedLogin(ctx, clientScope)
	if err != nil {
		return nil, NewBusinessError("REMEMBERED_LOGIN_FAILED", "Failed to read remembered login", err)
	}
	if remembered == nil {
		return &dto.RememberedLoginResponse{}, nil
	}
	return &dto.RememberedLoginResponse{Email: remembered.Email, RememberMe: remembered.RememberMe}, nil
}

// Captcha issues a rotate challenge
func (f *AuthFlowImpl) Captcha(ctx context.Context) (*dto.CaptchaChallengeResponse, error) {
	if f.captcha == nil {
		return nil, NewBusinessError("CAPTCHA_DISABLED", "Captcha is disabled", ErrCaptchaRequired)
	}
	challenge, err := f.captcha.GenerateRotate(ctx)
	if err != nil {
		return nil, NewBusinessError("CAPTCHA_FAILED", "Failed to generate captcha", err)
	}
	return &dto.CaptchaChallengeResponse{
		CaptchaID:   challenge.ID,
		MasterImage: challenge.MasterImageBase64,
		ThumbImage:  challenge.ThumbImageBase64,
		ExpiresAt:   challenge.ExpiresAt,
	}, nil
}

// Settings returns the stored application settings, empty when none were saved
func (f *AuthFlowImpl) Settings(ctx context.Context) (map[string]any, error) {
	settings, err := f.store.AppSettings(ctx)
	if err != nil {
		return nil, NewBusinessError("SETTINGS_FAILED", "Failed to load settings", err)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return settings, nil
}

// SaveSettings replaces the application settings
func (f *AuthFlowImpl) SaveSettings(ctx context.Context, req *dto.SettingsRequest) (err error) {
	defer func() {
		auditResult(ctx, f.accessLogger, err, "settings", func() {
			keys := make([]string, 0, len(req.Settings))
			for k := range req.Settings {
				keys = append(keys, k)
			}
			f.accessLogger.LogUpdate(ctx, "settings", "", "app_settings", map[string]any{"keys": keys})
		})
		if err != nil {
			err = NewBusinessError("SAVE_SETTINGS_FAILED", "Failed to save settings", err)
		}
	}()
	return f.store.SaveAppSettings(ctx, req.Settings)
}
