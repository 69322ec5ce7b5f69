package collab

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab/broadcast"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Profile{},
		&models.Contract{},
		&models.Template{},
		&models.Folder{},
		&models.TemplateFolder{},
		&models.Share{},
		&models.Comment{},
		&models.DocumentChange{},
		&models.AccessRequest{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func seedProfile(t *testing.T, db *gorm.DB, email string) models.Profile {
	t.Helper()
	profile := models.Profile{Email: email, DisplayName: email}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("failed to seed profile %s: %v", email, err)
	}
	return profile
}

func seedContract(t *testing.T, db *gorm.DB, ownerID, title string) models.Contract {
	t.Helper()
	contract := models.Contract{UserID: ownerID, Title: title, Content: "initial content"}
	if err := db.Create(&contract).Error; err != nil {
		t.Fatalf("failed to seed contract %s: %v", title, err)
	}
	return contract
}

func seedShare(t *testing.T, db *gorm.DB, resourceID, sharedBy, sharedWith string, permission models.Permission) models.Share {
	t.Helper()
	share := models.Share{
		ResourceType: models.ResourceTypeContract,
		ResourceID:   resourceID,
		SharedBy:     sharedBy,
		SharedWith:   sharedWith,
		Permission:   permission,
	}
	if err := db.Create(&share).Error; err != nil {
		t.Fatalf("failed to seed share: %v", err)
	}
	return share
}

// recordingBus captures published messages; Subscribe hands back an inert
// subscription. Service tests assert on the publish side only.
type recordingBus struct {
	mu       sync.Mutex
	messages []broadcast.Message
}

func (b *recordingBus) Publish(ctx context.Context, room string, msg broadcast.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg.Room = room
	b.messages = append(b.messages, msg)
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, room string, h broadcast.Handler) (broadcast.Subscription, error) {
	return &stubSubscription{done: make(chan struct{})}, nil
}

func (b *recordingBus) byKind(kind broadcast.Kind) []broadcast.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []broadcast.Message
	for _, msg := range b.messages {
		if msg.Kind == kind {
			out = append(out, msg)
		}
	}
	return out
}

type stubSubscription struct {
	done      chan struct{}
	closeOnce sync.Once
}

func (s *stubSubscription) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *stubSubscription) Done() <-chan struct{} {
	return s.done
}

func changeCount(t *testing.T, db *gorm.DB, resourceID string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.DocumentChange{}).Where("resource_id = ?", resourceID).Count(&n).Error; err != nil {
		t.Fatalf("failed to count changes: %v", err)
	}
	return n
}
