package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcerrors "github.com/R3E-Network/menu_layer/internal/errors"
)

type dish struct {
	Name     string          `json:"name" validate:"required,min=2"`
	Price    decimal.Decimal `json:"price" validate:"gt=0"`
	ImageURL string          `json:"image_url" validate:"omitempty,url"`
}

func TestStructValid(t *testing.T) {
	assert.NoError(t, Struct(dish{Name: "Soup", Price: decimal.RequireFromString("4.50")}))
}

func TestStructFieldMessages(t *testing.T) {
	err := Struct(dish{Name: "S", Price: decimal.Zero, ImageURL: "not a url"})
	require.Error(t, err)

	se := svcerrors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, svcerrors.CodeValidation, se.Code)
	assert.Equal(t, "Name must be at least 2 characters", se.Details["name"])
	assert.Equal(t, "Price must be a positive number", se.Details["price"])
	assert.Equal(t, "Must be a valid URL", se.Details["image_url"])
}

func TestStructUnknownMessageFallsBack(t *testing.T) {
	type form struct {
		Code string `json:"code" validate:"len=4"`
	}
	se := svcerrors.GetServiceError(Struct(form{Code: "1"}))
	require.NotNil(t, se)
	assert.Equal(t, "code failed len=4", se.Details["code"])
}
