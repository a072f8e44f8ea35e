package servicepackages

import (
	"context"
	"errors"
	"strings"
	"time"

	"evms-backend/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound      = errors.New("service package not found")
	ErrInactive      = errors.New("service package inactive")
	ErrDuplicateSlug = errors.New("slug already used")
	ErrInvalidSlug   = errors.New("invalid slug")
)

type Service struct {
	repo     Repository
	location *time.Location
	now      func() time.Time
}

func NewService(repo Repository, location *time.Location) *Service {
	return &Service{
		repo:     repo,
		location: location,
		now:      time.Now,
	}
}

func slugFor(name, slug string) (string, error) {
	if strings.TrimSpace(slug) == "" {
		slug = name
	}
	out := utils.Slugify(slug)
	if out == "" {
		return "", ErrInvalidSlug
	}
	return out, nil
}

func cleanServices(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Package, error) {
	slug, err := slugFor(req.Name, req.Slug)
	if err != nil {
		return Package{}, err
	}

	now := s.now().In(s.location)
	pkg := Package{
		ID:              primitive.NewObjectID().Hex(),
		Name:            strings.TrimSpace(req.Name),
		Slug:            slug,
		Description:     strings.TrimSpace(req.Description),
		Price:           req.Price,
		DurationMinutes: req.DurationMinutes,
		Services:        cleanServices(req.Services),
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, pkg); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Package{}, ErrDuplicateSlug
		}
		return Package{}, err
	}
	return pkg, nil
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]Package, error) {
	return s.repo.List(ctx, !includeInactive)
}

func (s *Service) Get(ctx context.Context, id string) (Package, error) {
	pkg, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Package{}, ErrNotFound
		}
		return Package{}, err
	}
	return pkg, nil
}

// GetActive resolves a package that can still be booked.
func (s *Service) GetActive(ctx context.Context, id string) (Package, error) {
	pkg, err := s.Get(ctx, id)
	if err != nil {
		return Package{}, err
	}
	if !pkg.Active {
		return Package{}, ErrInactive
	}
	return pkg, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (Package, error) {
	slug, err := slugFor(req.Name, req.Slug)
	if err != nil {
		return Package{}, err
	}
	set := bson.M{
		"name":            strings.TrimSpace(req.Name),
		"slug":            slug,
		"description":     strings.TrimSpace(req.Description),
		"price":           req.Price,
		"durationMinutes": req.DurationMinutes,
		"services":        cleanServices(req.Services),
		"updatedAt":       s.now().In(s.location),
	}
	if req.Active != nil {
		set["active"] = *req.Active
	}
	return s.update(ctx, id, set)
}

func (s *Service) Deactivate(ctx context.Context, id string) (Package, error) {
	return s.update(ctx, id, bson.M{
		"active":    false,
		"updatedAt": s.now().In(s.location),
	})
}

func (s *Service) update(ctx context.Context, id string, set bson.M) (Package, error) {
	updated, err := s.repo.Update(ctx, strings.TrimSpace(id), set)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return Package{}, ErrNotFound
		case mongo.IsDuplicateKeyError(err):
			return Package{}, ErrDuplicateSlug
		}
		return Package{}, err
	}
	return updated, nil
}
