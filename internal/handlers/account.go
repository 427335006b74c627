package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"playtube/api/internal/api"
	"playtube/api/internal/apperr"
	"playtube/api/internal/middleware"
	"playtube/api/internal/models"
	"playtube/api/internal/service"
)

type userResponse struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatarUrl"`
	CoverImageURL *string   `json:"coverImageUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toUserResponse(user models.User) userResponse {
	return userResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

func (h HandlerSet) RegisterAccount(c *gin.Context) {
	avatar, err := c.FormFile("avatar")
	if err != nil {
		avatar = nil
	}
	cover, err := c.FormFile("coverImage")
	if err != nil {
		cover = nil
	}

	user, err := h.accounts.Register(c.Request.Context(), service.RegisterInput{
		Username: c.PostForm("username"),
		FullName: c.PostForm("fullName"),
		Email:    c.PostForm("email"),
		Password: c.PostForm("password"),
		Avatar:   avatar,
		Cover:    cover,
	})
	if err != nil {
		h.failed(c, err, "register")
		return
	}

	api.Success(c, http.StatusCreated, toUserResponse(user), "user registered successfully")
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, apperr.Wrap(apperr.Validation, "invalid request body", err), !h.cfg.Production())
		return
	}

	user, pair, err := h.accounts.Login(c.Request.Context(), service.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.failed(c, err, "login")
		return
	}

	h.setAuthCookies(c, pair)

	api.Success(c, http.StatusOK, gin.H{
		"user":         toUserResponse(user),
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	}, "user logged in successfully")
}

func (h HandlerSet) Logout(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		api.Fail(c, apperr.New(apperr.Unauthorized, "unauthorized request"), !h.cfg.Production())
		return
	}

	if err := h.accounts.Logout(c.Request.Context(), user.ID); err != nil {
		h.failed(c, err, "logout")
		return
	}

	h.userCache.Invalidate(c.Request.Context(), user.ID)
	h.clearAuthCookies(c)

	api.Success(c, http.StatusOK, gin.H{}, "user logged out successfully")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h HandlerSet) RefreshToken(c *gin.Context) {
	presented, _ := c.Cookie("refreshToken")
	if presented == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			presented = req.RefreshToken
		}
	}

	pair, err := h.accounts.Refresh(c.Request.Context(), presented)
	if err != nil {
		h.failed(c, err, "refresh token")
		return
	}

	h.setAuthCookies(c, pair)

	api.Success(c, http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	}, "access token refreshed")
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		api.Fail(c, apperr.New(apperr.Unauthorized, "unauthorized request"), !h.cfg.Production())
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, apperr.Wrap(apperr.Validation, "invalid request body", err), !h.cfg.Production())
		return
	}

	if err := h.accounts.ChangePassword(c.Request.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		h.failed(c, err, "change password")
		return
	}

	h.userCache.Invalidate(c.Request.Context(), user.ID)

	api.Success(c, http.StatusOK, gin.H{}, "password changed successfully")
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (h HandlerSet) UpdateAccount(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		api.Fail(c, apperr.New(apperr.Unauthorized, "unauthorized request"), !h.cfg.Production())
		return
	}

	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, apperr.Wrap(apperr.Validation, "invalid request body", err), !h.cfg.Production())
		return
	}

	updated, err := h.accounts.UpdateAccount(c.Request.Context(), user.ID, req.FullName, req.Email)
	if err != nil {
		h.failed(c, err, "update account")
		return
	}

	h.userCache.Invalidate(c.Request.Context(), user.ID)

	api.Success(c, http.StatusOK, toUserResponse(updated), "account details updated successfully")
}

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		api.Fail(c, apperr.New(apperr.Unauthorized, "unauthorized request"), !h.cfg.Production())
		return
	}

	api.Success(c, http.StatusOK, toUserResponse(user), "current user fetched successfully")
}

// failed logs the underlying cause and renders the caller-safe envelope.
func (h HandlerSet) failed(c *gin.Context, err error, op string) {
	if apperr.KindOf(err) == apperr.Internal {
		h.log.Error().Err(err).Str("op", op).Msg("request failed")
	}
	api.Fail(c, err, !h.cfg.Production())
}

func (h HandlerSet) setAuthCookies(c *gin.Context, pair service.TokenPair) {
	accessMaxAge := int(h.cfg.Security.AccessTokenTTL.Seconds())
	refreshMaxAge := int(h.cfg.Security.RefreshTokenTTL.Seconds())

	c.SetCookie("accessToken", pair.AccessToken, accessMaxAge, "/", "", true, true)
	c.SetCookie("refreshToken", pair.RefreshToken, refreshMaxAge, "/", "", true, true)
}

func (h HandlerSet) clearAuthCookies(c *gin.Context) {
	c.SetCookie("accessToken", "", -1, "/", "", true, true)
	c.SetCookie("refreshToken", "", -1, "/", "", true, true)
}
