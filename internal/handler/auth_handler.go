/*
Package handler provides HTTP handler functions for user authentication and management.
*/
package handler

import (
	"context"
	"net/http"
	"regexp"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"agrichat/internal/app/db"
	"agrichat/internal/app/store"
	"agrichat/internal/app/user"
	"agrichat/internal/pkg/auth/jwt"
	"agrichat/internal/pkg/errs"
	"agrichat/internal/pkg/logx"
	"agrichat/internal/pkg/randx"
	"agrichat/internal/pkg/req"
	"agrichat/internal/pkg/resp"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-z0-9_]{4,20}$`)
)

type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// HandleRegister processes the request to create a new marketplace account.
// Role defaults to farmer when omitted.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input RegisterInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !usernameRegex.MatchString(input.Username) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		}

		passwordLen := utf8.RuneCountInString(input.Password)
		if passwordLen < 6 || passwordLen > 50 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		role := input.Role
		if role == "" {
			role = user.RoleFarmer
		}
		if !user.ValidRole(role) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidRole))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		displayName, err := randx.DisplayName()
		if err != nil {
			displayName = "User_X"
		}

		created, err := deps.Users.CreateUser(r.Context(), store.NewUserParams{
			Username:     input.Username,
			PasswordHash: string(hashedPassword),
			DisplayName:  displayName,
			Role:         role,
		})

		if err != nil {
			if db.IsUniqueViolation(err) {
				logx.Warn("registration conflict: username already exists", "username", input.Username)
				resp.RespondError(w, r, errs.NewError(errs.ErrUserAlreadyExists))
				return
			}

			logx.Error(err, "failed to create user in database")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if err := deps.Users.UpdateLastLogin(r.Context(), created.ID); err != nil {
			logx.Error(err, "register: failed to update last_login_at", "user_id", created.ID)
		}

		payload := &jwt.Payload{
			ID:       created.ID,
			Username: created.Username,
			Role:     created.Role,
		}

		tokenString, err := jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.UserIdentityExpiration)
		if err != nil {
			logx.Error(err, "failed to generate token after registration")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token": tokenString,
			"user":  created,
		})
	}
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin verifies user credentials and issues a JWT token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity := jwt.GetPayloadFromContext(r); identity != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input LoginInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		account, err := deps.Users.GetAccountByUsername(r.Context(), input.Username)
		if err != nil {
			logx.Warn("login: account fetch failed", "username", input.Username, "error", err)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
			logx.Warn("login: password mismatch", "username", input.Username)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := deps.Users.UpdateLastLogin(r.Context(), account.ID); err != nil {
			logx.Error(err, "login: failed to update last_login_at", "user_id", account.ID)
		}

		payload := &jwt.Payload{
			ID:       account.ID,
			Username: account.Username,
			Role:     account.Role,
		}

		token, err := jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.UserIdentityExpiration)

		if err != nil {
			logx.Error(err, "login: jwt generation failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token": token,
			"user":  account.User,
		})
	}
}

// HandleGetUserProfile retrieves the current authenticated user's profile and
// updates the last_login_at timestamp if the threshold is met.
func HandleGetUserProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		account, err := deps.Users.GetAccountByID(r.Context(), identity.ID)
		if err != nil {
			logx.Warn("get_user_profile: user not found", "id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var lastLoginResponse any = nil
		if account.LastLoginAt != nil {
			lastLoginResponse = account.LastLoginAt.Format(time.RFC3339)
		}

		shouldUpdate := account.LastLoginAt == nil || time.Since(*account.LastLoginAt) > 30*time.Minute

		if shouldUpdate {
			go func(id string) {
				if err := deps.Users.UpdateLastLogin(context.Background(), id); err != nil {
					logx.Error(err, "get_user_profile: failed to update last_login_at", "user_id", id)
				}
			}(account.ID)
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user":        account.User,
			"lastLoginAt": lastLoginResponse,
		})
	}
}

type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func HandleChangePassword(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input ChangePasswordInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		passwordLen := utf8.RuneCountInString(input.NewPassword)
		if passwordLen < 6 || passwordLen > 50 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		account, err := deps.Users.GetAccountByID(r.Context(), identity.ID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		err = bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.OldPassword))
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrOldPasswordInvalid))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		err = deps.Users.UpdateUserPassword(r.Context(), account.ID, string(hashedPassword))
		if err != nil {
			logx.Error(err, "failed to update user password in database", "user_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		newToken, err := jwt.GenerateToken(identity, deps.Config.JWTSecret, jwt.UserIdentityExpiration)
		if err != nil {
			logx.Error(err, "failed to generate token after password change", "user_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token": newToken,
		})
	}
}
