package technicians

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"evms-backend/internal/auth"
	"evms-backend/internal/httpx"
	"evms-backend/internal/storage"
	"evms-backend/internal/users"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	MaxCertificateFileSize = 10 << 20
	fileURLTTL             = 15 * time.Minute
)

var (
	ErrNotFound            = errors.New("technician not found")
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrForbidden           = errors.New("forbidden")
	ErrFileTooLarge        = errors.New("file too large")
	ErrUnsupportedFile     = errors.New("unsupported file type")
)

var allowedFileTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// UserDirectory is the part of the user service technician profiles depend on.
type UserDirectory interface {
	Create(ctx context.Context, req users.CreateRequest) (users.User, error)
	Get(ctx context.Context, id string) (users.User, error)
}

type Service struct {
	repo     Repository
	users    UserDirectory
	files    storage.ObjectStore
	location *time.Location
	now      func() time.Time
}

func NewService(repo Repository, directory UserDirectory, files storage.ObjectStore, location *time.Location) *Service {
	if files == nil {
		files = storage.DisabledStore{}
	}
	return &Service{
		repo:     repo,
		users:    directory,
		files:    files,
		location: location,
		now:      time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (View, error) {
	user, err := s.users.Create(ctx, users.CreateRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
		Role:     auth.RoleTechnician,
	})
	if err != nil {
		return View{}, err
	}

	now := s.now().In(s.location)
	tech := Technician{
		ID:              primitive.NewObjectID().Hex(),
		UserID:          user.ID,
		Introduction:    strings.TrimSpace(req.Introduction),
		ExperienceYears: req.ExperienceYears,
		StartDate:       strings.TrimSpace(req.StartDate),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, tech); err != nil {
		return View{}, fmt.Errorf("create technician profile: %w", err)
	}
	return toView(tech, user), nil
}

func (s *Service) List(ctx context.Context, page httpx.Page, withCertificates bool) ([]View, int64, error) {
	items, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	views := make([]View, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, tech := range items {
		user, err := s.users.Get(ctx, tech.UserID)
		if err != nil && !errors.Is(err, users.ErrNotFound) {
			return nil, 0, err
		}
		views = append(views, toView(tech, user))
		ids = append(ids, tech.ID)
	}

	if withCertificates && len(ids) > 0 {
		certs, err := s.repo.ListCertificates(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		byTech := map[string][]Certificate{}
		for _, c := range certs {
			byTech[c.TechnicianID] = append(byTech[c.TechnicianID], s.withFileURL(ctx, c))
		}
		for i := range views {
			views[i].Certificates = byTech[views[i].ID]
		}
	}
	return views, total, nil
}

func (s *Service) Get(ctx context.Context, id string, withCertificates bool) (View, error) {
	tech, err := s.get(ctx, id)
	if err != nil {
		return View{}, err
	}
	user, err := s.users.Get(ctx, tech.UserID)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return View{}, err
	}
	view := toView(tech, user)
	if withCertificates {
		certs, err := s.repo.ListCertificates(ctx, []string{tech.ID})
		if err != nil {
			return View{}, err
		}
		for _, c := range certs {
			view.Certificates = append(view.Certificates, s.withFileURL(ctx, c))
		}
	}
	return view, nil
}

func (s *Service) Update(ctx context.Context, caller auth.Principal, id string, req UpdateRequest) (Technician, error) {
	tech, err := s.get(ctx, id)
	if err != nil {
		return Technician{}, err
	}
	if !canManage(caller, tech) {
		return Technician{}, ErrForbidden
	}

	updated, err := s.repo.Update(ctx, tech.ID, bson.M{
		"introduction":    strings.TrimSpace(req.Introduction),
		"experienceYears": req.ExperienceYears,
		"startDate":       strings.TrimSpace(req.StartDate),
		"updatedAt":       s.now().In(s.location),
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Technician{}, ErrNotFound
		}
		return Technician{}, err
	}
	return updated, nil
}

func (s *Service) AddCertificate(ctx context.Context, caller auth.Principal, technicianID string, req CertificateRequest) (Certificate, error) {
	tech, err := s.get(ctx, technicianID)
	if err != nil {
		return Certificate{}, err
	}
	if !canManage(caller, tech) {
		return Certificate{}, ErrForbidden
	}

	cert := Certificate{
		ID:           primitive.NewObjectID().Hex(),
		TechnicianID: tech.ID,
		Name:         strings.TrimSpace(req.Name),
		Issuer:       strings.TrimSpace(req.Issuer),
		IssuedAt:     strings.TrimSpace(req.IssuedAt),
		ExpiresAt:    strings.TrimSpace(req.ExpiresAt),
		CreatedAt:    s.now().In(s.location),
	}
	if err := s.repo.CreateCertificate(ctx, cert); err != nil {
		return Certificate{}, err
	}
	return cert, nil
}

func (s *Service) DeleteCertificate(ctx context.Context, caller auth.Principal, technicianID, certID string) (Certificate, error) {
	tech, err := s.get(ctx, technicianID)
	if err != nil {
		return Certificate{}, err
	}
	if !canManage(caller, tech) {
		return Certificate{}, ErrForbidden
	}
	cert, err := s.repo.GetCertificate(ctx, tech.ID, strings.TrimSpace(certID))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Certificate{}, ErrCertificateNotFound
		}
		return Certificate{}, err
	}
	if err := s.repo.DeleteCertificate(ctx, tech.ID, cert.ID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Certificate{}, ErrCertificateNotFound
		}
		return Certificate{}, err
	}
	return cert, nil
}

// RemoveFile deletes a stored certificate document; callers treat failures as best effort.
func (s *Service) RemoveFile(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.files.Delete(ctx, key)
}

func (s *Service) UploadCertificateFile(ctx context.Context, caller auth.Principal, technicianID, certID string, upload Upload, body io.Reader) (Certificate, error) {
	if upload.Size > MaxCertificateFileSize {
		return Certificate{}, ErrFileTooLarge
	}
	contentType := strings.ToLower(strings.TrimSpace(upload.ContentType))
	ext, ok := allowedFileTypes[contentType]
	if !ok {
		return Certificate{}, ErrUnsupportedFile
	}

	tech, err := s.get(ctx, technicianID)
	if err != nil {
		return Certificate{}, err
	}
	if !canManage(caller, tech) {
		return Certificate{}, ErrForbidden
	}
	cert, err := s.repo.GetCertificate(ctx, tech.ID, strings.TrimSpace(certID))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Certificate{}, ErrCertificateNotFound
		}
		return Certificate{}, err
	}

	key := path.Join("certificates", tech.ID, fmt.Sprintf("%s-%d%s", cert.ID, s.now().Unix(), ext))
	if err := s.files.Put(ctx, key, body, upload.Size, contentType); err != nil {
		return Certificate{}, err
	}

	updated, err := s.repo.SetCertificateFile(ctx, tech.ID, cert.ID, key)
	if err != nil {
		_ = s.files.Delete(ctx, key)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Certificate{}, ErrCertificateNotFound
		}
		return Certificate{}, err
	}
	if cert.FileKey != "" && cert.FileKey != key {
		_ = s.files.Delete(ctx, cert.FileKey)
	}
	return s.withFileURL(ctx, updated), nil
}

func (s *Service) get(ctx context.Context, id string) (Technician, error) {
	tech, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Technician{}, ErrNotFound
		}
		return Technician{}, err
	}
	return tech, nil
}

func (s *Service) withFileURL(ctx context.Context, cert Certificate) Certificate {
	if cert.FileKey == "" {
		return cert
	}
	url, err := s.files.PresignGet(ctx, cert.FileKey, fileURLTTL)
	if err == nil {
		cert.FileURL = url
	}
	return cert
}

func canManage(caller auth.Principal, tech Technician) bool {
	return caller.Is(auth.RoleAdmin) || caller.UserID == tech.UserID
}

func toView(tech Technician, user users.User) View {
	return View{
		Technician: tech,
		FullName:   user.FullName,
		Email:      user.Email,
		Phone:      user.Phone,
		Disabled:   user.Disabled,
	}
}
