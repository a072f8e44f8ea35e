package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"evms-backend/internal/auth"
	"evms-backend/internal/httpx"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDisabled           = errors.New("account disabled")
	ErrSelfDisable        = errors.New("cannot disable own account")
	ErrAuthNotConfigured  = errors.New("auth not configured")
)

var SortFields = []string{"createdAt", "email", "fullName", "role"}

type Service struct {
	repo     Repository
	tokens   *auth.Manager
	location *time.Location
	now      func() time.Time
}

func NewService(repo Repository, tokens *auth.Manager, location *time.Location) *Service {
	return &Service{
		repo:     repo,
		tokens:   tokens,
		location: location,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, error) {
	return s.create(ctx, req.Email, req.Password, req.FullName, req.Phone, auth.RoleCustomer)
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (User, error) {
	return s.create(ctx, req.Email, req.Password, req.FullName, req.Phone, req.Role)
}

func (s *Service) create(ctx context.Context, email, password, fullName, phone, role string) (User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return User{}, err
	}

	now := s.now().In(s.location)
	user := User{
		ID:           primitive.NewObjectID().Hex(),
		Email:        normalizeEmail(email),
		FullName:     strings.TrimSpace(fullName),
		Phone:        strings.TrimSpace(phone),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return User{}, ErrDuplicateEmail
		}
		return User{}, err
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	if s.tokens == nil {
		return LoginResult{}, ErrAuthNotConfigured
	}
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, req.Password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if user.Disabled {
		return LoginResult{}, ErrDisabled
	}

	token, err := s.tokens.NewAccessToken(user.ID, user.Role)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokens.AccessTTL.Seconds()),
		User:        user,
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	user, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, page httpx.Page, sort httpx.Sort) ([]User, int64, error) {
	filter.Role = strings.ToLower(strings.TrimSpace(filter.Role))
	filter.Query = strings.TrimSpace(filter.Query)
	if filter.Role != "" && !auth.IsValidRole(filter.Role) {
		return nil, 0, auth.ErrInvalidRole
	}

	items, err := s.repo.List(ctx, filter, page, sort)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (User, error) {
	set := bson.M{
		"fullName":  strings.TrimSpace(req.FullName),
		"phone":     strings.TrimSpace(req.Phone),
		"updatedAt": s.now().In(s.location),
	}
	if req.Role != "" {
		set["role"] = req.Role
	}
	return s.update(ctx, id, set)
}

func (s *Service) UpdateProfile(ctx context.Context, caller auth.Principal, req ProfileRequest) (User, error) {
	return s.update(ctx, caller.UserID, bson.M{
		"fullName":  strings.TrimSpace(req.FullName),
		"phone":     strings.TrimSpace(req.Phone),
		"updatedAt": s.now().In(s.location),
	})
}

func (s *Service) SetDisabled(ctx context.Context, caller auth.Principal, id string, disabled bool) (User, error) {
	if disabled && caller.UserID == strings.TrimSpace(id) {
		return User{}, ErrSelfDisable
	}
	return s.update(ctx, id, bson.M{
		"disabled":  disabled,
		"updatedAt": s.now().In(s.location),
	})
}

func (s *Service) SetPassword(ctx context.Context, id, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.update(ctx, id, bson.M{
		"passwordHash": hash,
		"updatedAt":    s.now().In(s.location),
	})
	return err
}

func (s *Service) update(ctx context.Context, id string, set bson.M) (User, error) {
	updated, err := s.repo.Update(ctx, strings.TrimSpace(id), set)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return updated, nil
}
