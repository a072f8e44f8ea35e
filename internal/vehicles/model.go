package vehicles

import "time"

type Vehicle struct {
	ID                 string    `bson:"_id,omitempty" json:"id"`
	OwnerID            string    `bson:"ownerId" json:"ownerId"`
	Brand              string    `bson:"brand" json:"brand"`
	Model              string    `bson:"model" json:"model"`
	Year               int       `bson:"year" json:"year"`
	LicensePlate       string    `bson:"licensePlate" json:"licensePlate"`
	VIN                string    `bson:"vin,omitempty" json:"vin,omitempty"`
	BatteryCapacityKwh float64   `bson:"batteryCapacityKwh" json:"batteryCapacityKwh"`
	CreatedAt          time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time `bson:"updatedAt" json:"updatedAt"`
}

type CreateRequest struct {
	OwnerID            string  `json:"ownerId" validate:"omitempty,objectid"`
	Brand              string  `json:"brand" validate:"required,max=60"`
	Model              string  `json:"model" validate:"required,max=60"`
	Year               int     `json:"year" validate:"required,gte=1990,lte=2100"`
	LicensePlate       string  `json:"licensePlate" validate:"required,plate"`
	VIN                string  `json:"vin" validate:"omitempty,len=17,alphanum"`
	BatteryCapacityKwh float64 `json:"batteryCapacityKwh" validate:"gte=0,lte=500"`
}

type UpdateRequest struct {
	Brand              string  `json:"brand" validate:"required,max=60"`
	Model              string  `json:"model" validate:"required,max=60"`
	Year               int     `json:"year" validate:"required,gte=1990,lte=2100"`
	LicensePlate       string  `json:"licensePlate" validate:"required,plate"`
	VIN                string  `json:"vin" validate:"omitempty,len=17,alphanum"`
	BatteryCapacityKwh float64 `json:"batteryCapacityKwh" validate:"gte=0,lte=500"`
}

type ListFilter struct {
	OwnerID string
	Query   string
}
