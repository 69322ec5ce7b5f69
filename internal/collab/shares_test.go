package collab

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
)

func TestShareCreateAndUpsert(t *testing.T) {
	db := newTestDB(t)
	bus := &recordingBus{}
	feed := NewChangeFeed(db, bus)
	svc := NewShareService(db, NewAccessService(db), feed)

	owner := seedProfile(t, db, "owner@example.com")
	grantee := seedProfile(t, db, "grantee@example.com")
	contract := seedContract(t, db, owner.ID, "Supply Agreement")

	share, err := svc.Create(context.Background(), owner.ID, CreateShareInput{
		ResourceType:    models.ResourceTypeContract,
		ResourceID:      contract.ID,
		SharedWithEmail: grantee.Email,
		Permission:      models.PermissionView,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PermissionView, share.Permission)
	require.NotNil(t, share.SharedWithProfile)
	assert.Equal(t, grantee.Email, share.SharedWithProfile.Email)

	// A second grant for the same user updates the row in place.
	upserted, err := svc.Create(context.Background(), owner.ID, CreateShareInput{
		ResourceType:    models.ResourceTypeContract,
		ResourceID:      contract.ID,
		SharedWithEmail: grantee.Email,
		Permission:      models.PermissionEdit,
	})
	require.NoError(t, err)
	assert.Equal(t, share.ID, upserted.ID)
	assert.Equal(t, models.PermissionEdit, upserted.Permission)

	var count int64
	require.NoError(t, db.Model(&models.Share{}).Where("resource_id = ?", contract.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestShareCreateRejectsSelfShare(t *testing.T) {
	db := newTestDB(t)
	svc := NewShareService(db, NewAccessService(db), NewChangeFeed(db, &recordingBus{}))

	owner := seedProfile(t, db, "owner@example.com")
	contract := seedContract(t, db, owner.ID, "NDA")

	_, err := svc.Create(context.Background(), owner.ID, CreateShareInput{
		ResourceType:    models.ResourceTypeContract,
		ResourceID:      contract.ID,
		SharedWithEmail: owner.Email,
		Permission:      models.PermissionView,
	})
	require.Error(t, err)
	status, _ := StatusOf(err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestShareCreateUnknownEmail(t *testing.T) {
	db := newTestDB(t)
	svc := NewShareService(db, NewAccessService(db), NewChangeFeed(db, &recordingBus{}))

	owner := seedProfile(t, db, "owner@example.com")
	contract := seedContract(t, db, owner.ID, "NDA")

	_, err := svc.Create(context.Background(), owner.ID, CreateShareInput{
		ResourceType:    models.ResourceTypeContract,
		ResourceID:      contract.ID,
		SharedWithEmail: "nobody@example.com",
		Permission:      models.PermissionView,
	})
	require.Error(t, err)
	status, _ := StatusOf(err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestShareCreateRequiresAdmin(t *testing.T) {
	db := newTestDB(t)
	svc := NewShareService(db, NewAccessService(db), NewChangeFeed(db, &recordingBus{}))

	owner := seedProfile(t, db, "owner@example.com")
	editor := seedProfile(t, db, "editor@example.com")
	third := seedProfile(t, db, "third@example.com")
	contract := seedContract(t, db, owner.ID, "NDA")
	seedShare(t, db, contract.ID, owner.ID, editor.ID, models.PermissionEdit)

	_, err := svc.Create(context.Background(), editor.ID, CreateShareInput{
		ResourceType:    models.ResourceTypeContract,
		ResourceID:      contract.ID,
		SharedWithEmail: third.Email,
		Permission:      models.PermissionView,
	})
	require.Error(t, err)
	status, _ := StatusOf(err)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestShareDeleteSelfRemoval(t *testing.T) {
	db := newTestDB(t)
	svc := NewShareService(db, NewAccessService(db), NewChangeFeed(db, &recordingBus{}))

	owner := seedProfile(t, db, "owner@example.com")
	viewer := seedProfile(t, db, "viewer@example.com")
	contract := seedContract(t, db, owner.ID, "NDA")
	share := seedShare(t, db, contract.ID, owner.ID, viewer.ID, models.PermissionView)

	// The grantee may remove themselves without holding admin.
	require.NoError(t, svc.Delete(context.Background(), viewer.ID, share.ID))

	var count int64
	require.NoError(t, db.Model(&models.Share{}).Where("id = ?", share.ID).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestShareDeleteForbiddenForOthers(t *testing.T) {
	db := newTestDB(t)
	svc := NewShareService(db, NewAccessService(db), NewChangeFeed(db, &recordingBus{}))

	owner := seedProfile(t, db, "owner@example.com")
	viewer := seedProfile(t, db, "viewer@example.com")
	stranger := seedProfile(t, db, "stranger@example.com")
	contract := seedContract(t, db, owner.ID, "NDA")
	share := seedShare(t, db, contract.ID, owner.ID, viewer.ID, models.PermissionView)

	err := svc.Delete(context.Background(), stranger.ID, share.ID)
	require.Error(t, err)
	status, _ := StatusOf(err)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestShareUpdatePermission(t *testing.T) {
	db := newTestDB(t)
	bus := &recordingBus{}
	svc := NewShareService(db, NewAccessService(db), NewChangeFeed(db, bus))

	owner := seedProfile(t, db, "owner@example.com")
	viewer := seedProfile(t, db, "viewer@example.com")
	contract := seedContract(t, db, owner.ID, "NDA")
	share := seedShare(t, db, contract.ID, owner.ID, viewer.ID, models.PermissionView)

	edit := models.PermissionEdit
	updated, err := svc.Update(context.Background(), owner.ID, share.ID, UpdateShareInput{Permission: &edit})
	require.NoError(t, err)
	assert.Equal(t, models.PermissionEdit, updated.Permission)
	assert.EqualValues(t, 1, changeCount(t, db, contract.ID))
}

func TestSharedWithMeResolvesTitles(t *testing.T) {
	db := newTestDB(t)
	svc := NewShareService(db, NewAccessService(db), NewChangeFeed(db, &recordingBus{}))

	owner := seedProfile(t, db, "owner@example.com")
	viewer := seedProfile(t, db, "viewer@example.com")
	contract := seedContract(t, db, owner.ID, "Supply Agreement")
	seedShare(t, db, contract.ID, owner.ID, viewer.ID, models.PermissionView)

	shares, err := svc.SharedWithMe(context.Background(), viewer.ID, "", "")
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, "Supply Agreement", shares[0].ResourceTitle)
}

func TestSearchUsersAnnotatesExistingShares(t *testing.T) {
	db := newTestDB(t)
	svc := NewShareService(db, NewAccessService(db), NewChangeFeed(db, &recordingBus{}))

	owner := seedProfile(t, db, "owner@example.com")
	shared := seedProfile(t, db, "ada@example.com")
	unshared := seedProfile(t, db, "adam@example.com")
	contract := seedContract(t, db, owner.ID, "NDA")
	seedShare(t, db, contract.ID, owner.ID, shared.ID, models.PermissionEdit)

	results, err := svc.SearchUsers(context.Background(), owner.ID, "ada", models.ResourceTypeContract, contract.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byEmail := map[string]UserSearchResult{}
	for _, r := range results {
		byEmail[r.Email] = r
	}
	assert.True(t, byEmail[shared.Email].IsAlreadyShared)
	require.NotNil(t, byEmail[shared.Email].CurrentPermission)
	assert.Equal(t, models.PermissionEdit, *byEmail[shared.Email].CurrentPermission)
	assert.False(t, byEmail[unshared.Email].IsAlreadyShared)
}

func TestDeleteExpiredSweepsAndRecords(t *testing.T) {
	db := newTestDB(t)
	bus := &recordingBus{}
	svc := NewShareService(db, NewAccessService(db), NewChangeFeed(db, bus))

	owner := seedProfile(t, db, "owner@example.com")
	viewer := seedProfile(t, db, "viewer@example.com")
	keeper := seedProfile(t, db, "keeper@example.com")
	contract := seedContract(t, db, owner.ID, "NDA")

	past := time.Now().Add(-time.Minute)
	expired := models.Share{
		ResourceType: models.ResourceTypeContract,
		ResourceID:   contract.ID,
		SharedBy:     owner.ID,
		SharedWith:   viewer.ID,
		Permission:   models.PermissionView,
		ExpiresAt:    &past,
	}
	require.NoError(t, db.Create(&expired).Error)
	seedShare(t, db, contract.ID, owner.ID, keeper.ID, models.PermissionView)

	removed, err := svc.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	var remaining []models.Share
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, keeper.ID, remaining[0].SharedWith)
	assert.EqualValues(t, 1, changeCount(t, db, contract.ID))
}
