package service

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"

	"github.com/rs/zerolog"

	"playtube/api/internal/apperr"
	"playtube/api/internal/config"
	"playtube/api/internal/ids"
	"playtube/api/internal/models"
	"playtube/api/internal/repository"
	"playtube/api/internal/security"
)

// UserStore is the credential-store surface the account flows need.
// *repository.UserRepository implements it; tests substitute an in-memory
// fake.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	SetRefreshToken(ctx context.Context, id string, token *string) error
	SetPasswordHash(ctx context.Context, id string, hash []byte) error
	UpdateProfile(ctx context.Context, id, fullName, email string) (models.User, error)
}

// MediaUploader is the media-host surface; *MediaService implements it.
type MediaUploader interface {
	StoreImage(ctx context.Context, header *multipart.FileHeader, folder string) (string, error)
}

type AccountService struct {
	users UserStore
	media MediaUploader
	cfg   *config.AppConfig
	log   zerolog.Logger
}

func NewAccountService(users UserStore, media MediaUploader, cfg *config.AppConfig, log zerolog.Logger) *AccountService {
	return &AccountService{
		users: users,
		media: media,
		cfg:   cfg,
		log:   log,
	}
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type RegisterInput struct {
	Username string
	FullName string
	Email    string
	Password string
	Avatar   *multipart.FileHeader
	Cover    *multipart.FileHeader
}

func (s *AccountService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	fullName := strings.TrimSpace(input.FullName)
	email := strings.TrimSpace(input.Email)

	if username == "" || fullName == "" || email == "" || strings.TrimSpace(input.Password) == "" {
		return models.User{}, apperr.New(apperr.Validation, "all fields are required")
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return models.User{}, apperr.Wrap(apperr.Internal, "could not check existing users", err)
	}
	if exists {
		return models.User{}, apperr.New(apperr.Conflict, "user with this username or email already exists")
	}

	if input.Avatar == nil {
		return models.User{}, apperr.New(apperr.Validation, "avatar file is required")
	}

	avatarURL, err := s.media.StoreImage(ctx, input.Avatar, "avatars")
	if err != nil {
		return models.User{}, err
	}

	// The cover image is optional; a failed cover upload degrades to no
	// cover rather than failing registration.
	var coverURL *string
	if input.Cover != nil {
		url, err := s.media.StoreImage(ctx, input.Cover, "covers")
		if err != nil {
			s.log.Warn().Err(err).Str("username", username).Msg("cover image upload failed")
		} else {
			coverURL = &url
		}
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.User{}, apperr.Wrap(apperr.Internal, "could not hash password", err)
	}

	user := models.User{
		ID:            ids.New(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  hash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return models.User{}, apperr.New(apperr.Conflict, "user with this username or email already exists")
		}
		return models.User{}, apperr.Wrap(apperr.Internal, "could not create user", err)
	}

	created, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return models.User{}, apperr.Wrap(apperr.Internal, "something went wrong while registering the user", err)
	}

	return created.Sanitized(), nil
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

func (s *AccountService) Login(ctx context.Context, input LoginInput) (models.User, TokenPair, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.TrimSpace(input.Email)

	if username == "" || email == "" {
		return models.User{}, TokenPair{}, apperr.New(apperr.Validation, "username and email are required")
	}

	user, err := s.users.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, TokenPair{}, apperr.New(apperr.NotFound, "user does not exist")
		}
		return models.User{}, TokenPair{}, apperr.Wrap(apperr.Internal, "could not look up user", err)
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return models.User{}, TokenPair{}, apperr.New(apperr.Unauthorized, "invalid user credentials")
	}

	pair, err := s.issueTokenPair(ctx, user.ID)
	if err != nil {
		return models.User{}, TokenPair{}, err
	}

	return user.Sanitized(), pair, nil
}

// issueTokenPair mints both tokens and overwrites the stored refresh token,
// implicitly invalidating the previously issued one.
func (s *AccountService) issueTokenPair(ctx context.Context, userID string) (TokenPair, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.Internal, "something went wrong while generating tokens", err)
	}

	access, err := security.GenerateAccessToken(
		s.cfg.Security.AccessTokenSecret,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		s.cfg.Security.AccessTokenTTL,
	)
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.Internal, "something went wrong while generating tokens", err)
	}

	refresh, err := security.GenerateRefreshToken(
		s.cfg.Security.RefreshTokenSecret,
		user.ID,
		s.cfg.Security.RefreshTokenTTL,
	)
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.Internal, "something went wrong while generating tokens", err)
	}

	if err := s.users.SetRefreshToken(ctx, user.ID, &refresh); err != nil {
		return TokenPair{}, apperr.Wrap(apperr.Internal, "something went wrong while generating tokens", err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AccountService) Logout(ctx context.Context, userID string) error {
	if err := s.users.SetRefreshToken(ctx, userID, nil); err != nil {
		return apperr.Wrap(apperr.Internal, "could not log out", err)
	}
	return nil
}

func (s *AccountService) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	if strings.TrimSpace(presented) == "" {
		return TokenPair{}, apperr.New(apperr.Unauthorized, "unauthorized request")
	}

	claims, err := security.ParseRefreshToken(presented, s.cfg.Security.RefreshTokenSecret)
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.Unauthorized, "invalid refresh token", err)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.Unauthorized, "invalid refresh token", err)
	}

	// A valid signature is not enough: the token must also be the one
	// currently stored, which makes each issued refresh token single-use.
	if user.RefreshToken == nil || *user.RefreshToken != presented {
		return TokenPair{}, apperr.New(apperr.Unauthorized, "refresh token is expired or already used")
	}

	return s.issueTokenPair(ctx, user.ID)
}

func (s *AccountService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return apperr.New(apperr.Validation, "new password is required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "could not look up user", err)
	}

	ok, err := security.VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil || !ok {
		return apperr.New(apperr.Unauthorized, "invalid old password")
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "could not hash password", err)
	}

	if err := s.users.SetPasswordHash(ctx, userID, hash); err != nil {
		return apperr.Wrap(apperr.Internal, "could not change password", err)
	}
	return nil
}

func (s *AccountService) UpdateAccount(ctx context.Context, userID, fullName, email string) (models.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)

	if fullName == "" || email == "" {
		return models.User{}, apperr.New(apperr.Validation, "all fields are required")
	}

	updated, err := s.users.UpdateProfile(ctx, userID, fullName, email)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return models.User{}, apperr.New(apperr.NotFound, "user does not exist")
		case errors.Is(err, repository.ErrDuplicateUser):
			return models.User{}, apperr.New(apperr.Conflict, "email already in use")
		default:
			return models.User{}, apperr.Wrap(apperr.Internal, "could not update account details", err)
		}
	}

	return updated.Sanitized(), nil
}
