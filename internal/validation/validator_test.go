package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Phone   string `json:"phone" validate:"omitempty,phone"`
	Plate   string `json:"licensePlate" validate:"omitempty,plate"`
	OwnerID string `json:"ownerId" validate:"omitempty,objectid"`
	Day     string `json:"day" validate:"omitempty,date"`
}

func TestCustomTags(t *testing.T) {
	v := New()
	require.NoError(t, v.Struct(sample{
		Phone:   "+84901234567",
		Plate:   "51F-123.45",
		OwnerID: "65f1c2a3b4c5d6e7f8a9b0c1",
		Day:     "2026-03-01",
	}))
	require.NoError(t, v.Struct(sample{Plate: "30a12345"}))

	err := v.Struct(sample{Phone: "12", Plate: "nope", OwnerID: "xyz", Day: "01/03/2026"})
	require.Error(t, err)
	errs := v.ValidationErrors(err)
	fields := map[string]string{}
	for _, e := range errs {
		fields[e.Field()] = e.Tag()
	}
	assert.Equal(t, map[string]string{
		"phone":        "phone",
		"licensePlate": "plate",
		"ownerId":      "objectid",
		"day":          "date",
	}, fields)
}

func TestValidationErrorsOnOtherError(t *testing.T) {
	assert.Nil(t, New().ValidationErrors(assert.AnError))
	assert.Nil(t, New().ValidationErrors(nil))
}
