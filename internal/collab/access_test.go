package collab

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
)

func TestCheckAccessOwnerShortCircuits(t *testing.T) {
	db := newTestDB(t)
	owner := seedProfile(t, db, "owner@example.com")
	contract := seedContract(t, db, owner.ID, "NDA")

	svc := NewAccessService(db)
	access, err := svc.CheckAccess(context.Background(), owner.ID, models.ResourceTypeContract, contract.ID)
	require.NoError(t, err)

	assert.True(t, access.HasAccess)
	assert.True(t, access.IsOwner)
	assert.Equal(t, models.PermissionAdmin, access.Permission)
	assert.Nil(t, access.SharedBy)
}

func TestCheckAccessViaShare(t *testing.T) {
	db := newTestDB(t)
	owner := seedProfile(t, db, "owner@example.com")
	viewer := seedProfile(t, db, "viewer@example.com")
	contract := seedContract(t, db, owner.ID, "NDA")
	seedShare(t, db, contract.ID, owner.ID, viewer.ID, models.PermissionView)

	svc := NewAccessService(db)
	access, err := svc.CheckAccess(context.Background(), viewer.ID, models.ResourceTypeContract, contract.ID)
	require.NoError(t, err)

	assert.True(t, access.HasAccess)
	assert.False(t, access.IsOwner)
	assert.Equal(t, models.PermissionView, access.Permission)
	require.NotNil(t, access.SharedBy)
	assert.Equal(t, owner.ID, access.SharedBy.ID)
}

func TestCheckAccessMissingResource(t *testing.T) {
	db := newTestDB(t)
	user := seedProfile(t, db, "user@example.com")

	svc := NewAccessService(db)
	access, err := svc.CheckAccess(context.Background(), user.ID, models.ResourceTypeContract, "3f9c51a8-0000-0000-0000-000000000000")

	// A missing resource is "no access", never an error the caller can use
	// to probe for existence.
	require.NoError(t, err)
	assert.False(t, access.HasAccess)
}

func TestCheckAccessNoShare(t *testing.T) {
	db := newTestDB(t)
	owner := seedProfile(t, db, "owner@example.com")
	stranger := seedProfile(t, db, "stranger@example.com")
	contract := seedContract(t, db, owner.ID, "NDA")

	svc := NewAccessService(db)
	access, err := svc.CheckAccess(context.Background(), stranger.ID, models.ResourceTypeContract, contract.ID)
	require.NoError(t, err)
	assert.False(t, access.HasAccess)
	assert.Equal(t, models.Permission(""), access.Permission)
}

func TestCheckAccessExpiredShare(t *testing.T) {
	db := newTestDB(t)
	owner := seedProfile(t, db, "owner@example.com")
	viewer := seedProfile(t, db, "viewer@example.com")
	contract := seedContract(t, db, owner.ID, "NDA")

	expired := time.Now().Add(-time.Hour)
	share := models.Share{
		ResourceType: models.ResourceTypeContract,
		ResourceID:   contract.ID,
		SharedBy:     owner.ID,
		SharedWith:   viewer.ID,
		Permission:   models.PermissionEdit,
		ExpiresAt:    &expired,
	}
	require.NoError(t, db.Create(&share).Error)

	svc := NewAccessService(db)
	access, err := svc.CheckAccess(context.Background(), viewer.ID, models.ResourceTypeContract, contract.ID)
	require.NoError(t, err)
	assert.False(t, access.HasAccess)
}

func TestCheckAccessUnknownResourceType(t *testing.T) {
	db := newTestDB(t)
	user := seedProfile(t, db, "user@example.com")

	svc := NewAccessService(db)
	_, err := svc.CheckAccess(context.Background(), user.ID, models.ResourceType("attachment"), "irrelevant")
	require.Error(t, err)

	status, _ := StatusOf(err)
	assert.Equal(t, 400, status)
}

func TestResourceAccessAtLeast(t *testing.T) {
	cases := []struct {
		name   string
		access ResourceAccess
		min    models.Permission
		want   bool
	}{
		{"admin covers view", ResourceAccess{HasAccess: true, Permission: models.PermissionAdmin}, models.PermissionView, true},
		{"edit covers view", ResourceAccess{HasAccess: true, Permission: models.PermissionEdit}, models.PermissionView, true},
		{"view does not cover edit", ResourceAccess{HasAccess: true, Permission: models.PermissionView}, models.PermissionEdit, false},
		{"edit does not cover admin", ResourceAccess{HasAccess: true, Permission: models.PermissionEdit}, models.PermissionAdmin, false},
		{"no access fails regardless", ResourceAccess{HasAccess: false, Permission: models.PermissionAdmin}, models.PermissionView, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.access.AtLeast(tc.min))
		})
	}
}
