package technicians

import "time"

type Technician struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	UserID          string    `bson:"userId" json:"userId"`
	Introduction    string    `bson:"introduction,omitempty" json:"introduction,omitempty"`
	ExperienceYears int       `bson:"experienceYears" json:"experienceYears"`
	StartDate       string    `bson:"startDate,omitempty" json:"startDate,omitempty"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
}

type Certificate struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	TechnicianID string    `bson:"technicianId" json:"technicianId"`
	Name         string    `bson:"name" json:"name"`
	Issuer       string    `bson:"issuer" json:"issuer"`
	IssuedAt     string    `bson:"issuedAt" json:"issuedAt"`
	ExpiresAt    string    `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	FileKey      string    `bson:"fileKey,omitempty" json:"-"`
	FileURL      string    `bson:"-" json:"fileUrl,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

// View is a technician profile joined with its user account.
type View struct {
	Technician
	FullName     string        `json:"fullName"`
	Email        string        `json:"email"`
	Phone        string        `json:"phone,omitempty"`
	Disabled     bool          `json:"disabled"`
	Certificates []Certificate `json:"certificates,omitempty"`
}

type CreateRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	FullName        string `json:"fullName" validate:"required,max=120"`
	Phone           string `json:"phone" validate:"omitempty,phone"`
	Introduction    string `json:"introduction" validate:"max=2000"`
	ExperienceYears int    `json:"experienceYears" validate:"gte=0,lte=60"`
	StartDate       string `json:"startDate" validate:"omitempty,date"`
}

type UpdateRequest struct {
	Introduction    string `json:"introduction" validate:"max=2000"`
	ExperienceYears int    `json:"experienceYears" validate:"gte=0,lte=60"`
	StartDate       string `json:"startDate" validate:"omitempty,date"`
}

type CertificateRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Issuer    string `json:"issuer" validate:"required,max=200"`
	IssuedAt  string `json:"issuedAt" validate:"required,date"`
	ExpiresAt string `json:"expiresAt" validate:"omitempty,date"`
}

// Upload is a certificate document received from a multipart form.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
}
