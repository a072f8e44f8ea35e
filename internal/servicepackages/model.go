package servicepackages

import "time"

type Package struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	Name            string    `bson:"name" json:"name"`
	Slug            string    `bson:"slug" json:"slug"`
	Description     string    `bson:"description,omitempty" json:"description,omitempty"`
	Price           int64     `bson:"price" json:"price"`
	DurationMinutes int       `bson:"durationMinutes" json:"durationMinutes"`
	Services        []string  `bson:"services" json:"services"`
	Active          bool      `bson:"active" json:"active"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
}

type CreateRequest struct {
	Name            string   `json:"name" validate:"required,max=120"`
	Slug            string   `json:"slug" validate:"omitempty,max=140"`
	Description     string   `json:"description" validate:"max=4000"`
	Price           int64    `json:"price" validate:"gte=0"`
	DurationMinutes int      `json:"durationMinutes" validate:"required,gte=15,lte=600"`
	Services        []string `json:"services" validate:"max=50,dive,required,max=120"`
}

type UpdateRequest struct {
	Name            string   `json:"name" validate:"required,max=120"`
	Slug            string   `json:"slug" validate:"omitempty,max=140"`
	Description     string   `json:"description" validate:"max=4000"`
	Price           int64    `json:"price" validate:"gte=0"`
	DurationMinutes int      `json:"durationMinutes" validate:"required,gte=15,lte=600"`
	Services        []string `json:"services" validate:"max=50,dive,required,max=120"`
	Active          *bool    `json:"active"`
}
