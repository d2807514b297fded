package chat

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Lupao-eth/triptask-backend/apperr"
	"github.com/Lupao-eth/triptask-backend/config"
	"github.com/Lupao-eth/triptask-backend/models"
)

type fakeBus struct {
	mu     sync.Mutex
	rooms  []string
	events []string
}

func (b *fakeBus) Publish(room, event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms = append(b.rooms, room)
	b.events = append(b.events, event)
}

// fakeSigner fails for any path it was told to reject.
type fakeSigner struct {
	broken map[string]bool
}

func (s *fakeSigner) SignedURL(path string, ttl time.Duration) (string, error) {
	if s.broken[path] {
		return "", errors.New("bucket unavailable")
	}
	return fmt.Sprintf("https://files.test/%s?ttl=%d", path, int(ttl.Seconds())), nil
}

func newTestLog(t *testing.T) (*Log, *fakeBus, *fakeSigner, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("underlying db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	bus := &fakeBus{}
	signer := &fakeSigner{broken: map[string]bool{}}
	return NewLog(db, bus, signer), bus, signer, db
}

func seedUser(t *testing.T, db *gorm.DB, name string, role models.UserRole) uint {
	t.Helper()
	u := models.User{Name: name, Email: name + "@example.com", PasswordHash: "x", Role: role}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return u.ID
}

func seedTask(t *testing.T, db *gorm.DB, owner uint) uint {
	t.Helper()
	task := models.Task{
		UserID:   owner,
		Status:   models.StatusPending,
		Name:     "Groceries",
		Task:     "Pick up and deliver groceries",
		Pickup:   "Market St 1",
		Dropoff:  "Oak Ave 9",
		Datetime: "2026-09-01T10:00",
	}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return task.ID
}

func TestAppendRequiresContent(t *testing.T) {
	l, bus, _, db := newTestLog(t)
	cara := seedUser(t, db, "Cara", models.RoleCustomer)
	taskID := seedTask(t, db, cara)

	if _, err := l.Append(taskID, cara, "   ", nil); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("empty Append() error = %v, want Validation", err)
	}
	if len(bus.events) != 0 {
		t.Fatalf("rejected append published %d events", len(bus.events))
	}

	// Attachment-only messages are fine.
	if _, err := l.Append(taskID, cara, "", []models.Attachment{{Path: "1/a.png", Type: "image/png"}}); err != nil {
		t.Fatalf("attachment-only Append() error = %v", err)
	}
}

func TestAppendRejectsMissingTask(t *testing.T) {
	l, bus, _, db := newTestLog(t)
	cara := seedUser(t, db, "Cara", models.RoleCustomer)

	if _, err := l.Append(9999, cara, "anyone there?", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Append(missing task) error = %v, want NotFound", err)
	}
	if len(bus.events) != 0 {
		t.Fatalf("rejected append published %d events", len(bus.events))
	}
}

func TestAppendUsesStoredSenderName(t *testing.T) {
	l, _, _, db := newTestLog(t)
	cara := seedUser(t, db, "Cara", models.RoleCustomer)
	taskID := seedTask(t, db, cara)

	msg, err := l.Append(taskID, cara, "on my way", nil)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if msg.Sender != "Cara" {
		t.Fatalf("msg.Sender = %q, want the stored account name Cara", msg.Sender)
	}
	if msg.SenderID != cara {
		t.Fatalf("msg.SenderID = %d, want %d", msg.SenderID, cara)
	}

	if _, err := l.Append(taskID, 9999, "ghost", nil); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("Append(unknown sender) error = %v, want Unauthenticated", err)
	}
}

func TestAppendPublishesToTaskRoom(t *testing.T) {
	l, bus, _, db := newTestLog(t)
	cara := seedUser(t, db, "Cara", models.RoleCustomer)
	taskID := seedTask(t, db, cara)

	msg, err := l.Append(taskID, cara, "on my way", nil)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if msg.ID == 0 || msg.Timestamp.IsZero() {
		t.Fatalf("message not fully persisted: %+v", msg)
	}
	wantRoom := fmt.Sprintf("task-%d", taskID)
	if len(bus.events) != 1 || bus.events[0] != "newMessage" || bus.rooms[0] != wantRoom {
		t.Fatalf("publish = %v/%v, want newMessage in %s", bus.events, bus.rooms, wantRoom)
	}
}

func TestListOrdersAndSignsAttachments(t *testing.T) {
	l, _, _, db := newTestLog(t)
	cara := seedUser(t, db, "Cara", models.RoleCustomer)
	rei := seedUser(t, db, "Rei", models.RoleRider)
	taskID := seedTask(t, db, cara)
	otherTask := seedTask(t, db, cara)

	if _, err := l.Append(taskID, cara, "first", nil); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := l.Append(taskID, rei, "second", []models.Attachment{
		{Path: "2/receipt.png", Type: "image/png", Name: "receipt.png"},
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	// Another task's history stays separate.
	if _, err := l.Append(otherTask, cara, "elsewhere", nil); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	msgs, err := l.List(taskID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("List() returned %d messages, want 2", len(msgs))
	}
	if msgs[0].Text != "first" || msgs[1].Text != "second" {
		t.Fatalf("order = %q, %q; want first, second", msgs[0].Text, msgs[1].Text)
	}
	if len(msgs[1].Attachments) != 1 {
		t.Fatalf("attachments = %v, want 1", msgs[1].Attachments)
	}
	att := msgs[1].Attachments[0]
	if att.URL == "" || att.URL == "2/receipt.png" {
		t.Fatalf("attachment URL = %q, want a signed URL, not the raw path", att.URL)
	}
}

func TestListDropsUnresolvableAttachments(t *testing.T) {
	l, _, signer, db := newTestLog(t)
	cara := seedUser(t, db, "Cara", models.RoleCustomer)
	taskID := seedTask(t, db, cara)

	if _, err := l.Append(taskID, cara, "two files", []models.Attachment{
		{Path: "1/ok.png", Type: "image/png"},
		{Path: "1/broken.png", Type: "image/png"},
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	signer.broken["1/broken.png"] = true

	msgs, err := l.List(taskID)
	if err != nil {
		t.Fatalf("List() error = %v; one bad attachment must not fail the read", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("List() returned %d messages, want 1", len(msgs))
	}
	if len(msgs[0].Attachments) != 1 {
		t.Fatalf("attachments = %v, want just the resolvable one", msgs[0].Attachments)
	}
}
