package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SergeyBogomolovv/checkout-service/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteValidationError_UsesJSONNames(t *testing.T) {
	type payload struct {
		TrackingNumber string `json:"trackingNumber" validate:"required,min=5"`
	}

	err := utils.NewValidator().Struct(payload{TrackingNumber: "abc"})
	require.Error(t, err)

	rr := httptest.NewRecorder()
	require.NoError(t, utils.WriteValidationError(rr, err))

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var res utils.ValidationErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, "min", res.Fields["trackingNumber"])
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders?page=3&limit=abc", nil)

	page, err := utils.QueryInt(req, "page", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page)

	_, err = utils.QueryInt(req, "limit", 10)
	assert.Error(t, err)

	missing, err := utils.QueryInt(req, "missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, missing)
}
