package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	ResourceType string `json:"resourceType" validate:"required,resource_type"`
	Permission   string `json:"permission" validate:"required,permission_level"`
	Status       string `json:"status" validate:"omitempty,request_status"`
}

func TestValidatorAcceptsDomainValues(t *testing.T) {
	v := NewValidator()
	require.NotNil(t, v)

	err := v.Validate(sampleRequest{
		ResourceType: "contract",
		Permission:   "edit",
		Status:       "approved",
	})
	assert.NoError(t, err)
}

func TestValidatorRejectsUnknownValues(t *testing.T) {
	v := NewValidator()
	require.NotNil(t, v)

	cases := []struct {
		name string
		req  sampleRequest
	}{
		{"unknown resource type", sampleRequest{ResourceType: "attachment", Permission: "view"}},
		{"unknown permission", sampleRequest{ResourceType: "contract", Permission: "owner"}},
		{"pending is not a decision", sampleRequest{ResourceType: "contract", Permission: "view", Status: "pending"}},
		{"missing required", sampleRequest{Permission: "view"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.req)
			require.Error(t, err)

			var ve ValidationErrors
			require.ErrorAs(t, err, &ve)
			assert.NotEmpty(t, ve.Error())
		})
	}
}

func TestValidationErrorsUseJSONFieldNames(t *testing.T) {
	v := NewValidator()
	require.NotNil(t, v)

	err := v.Validate(sampleRequest{ResourceType: "bogus", Permission: "view"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resourceType")
}