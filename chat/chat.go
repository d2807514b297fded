// Package chat is the append-only per-task message log. Messages feed
// the notification bus on write; reads resolve stored attachment paths
// to time-limited URLs, dropping any single attachment whose resolution
// fails rather than failing the whole read.
package chat

import (
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Lupao-eth/triptask-backend/apperr"
	"github.com/Lupao-eth/triptask-backend/lifecycle"
	"github.com/Lupao-eth/triptask-backend/models"
)

// URLSigner resolves a storage path to a time-limited access URL.
type URLSigner interface {
	SignedURL(path string, ttl time.Duration) (string, error)
}

// SignedURLTTL matches the original one-hour link lifetime.
const SignedURLTTL = time.Hour

type Log struct {
	db     *gorm.DB
	bus    lifecycle.Publisher
	signer URLSigner
}

func NewLog(db *gorm.DB, bus lifecycle.Publisher, signer URLSigner) *Log {
	return &Log{db: db, bus: bus, signer: signer}
}

// SignedAttachment is an attachment reference with its path resolved.
type SignedAttachment struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// MessageView is a chat message as returned to clients.
type MessageView struct {
	ID          uint               `json:"id"`
	TaskID      uint               `json:"task_id"`
	SenderID    uint               `json:"sender_id"`
	Sender      string             `json:"sender"`
	Text        string             `json:"text"`
	Attachments []SignedAttachment `json:"file_urls"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Append stores a message and publishes it to the task's room. A
// message must carry text or at least one attachment, and the task it
// targets must exist. The display name is snapshotted from the sender's
// stored account, never taken from the caller.
func (l *Log) Append(taskID, senderID uint, text string, attachments []models.Attachment) (*models.ChatMessage, error) {
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return nil, apperr.Wrap(apperr.ErrValidation, "message needs text or an attachment")
	}

	if err := l.db.First(&models.Task{}, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap(apperr.ErrNotFound, "task not found")
		}
		return nil, apperr.Wrap(apperr.ErrUpstream, "look up task: %v", err)
	}
	var sender models.User
	if err := l.db.First(&sender, senderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap(apperr.ErrUnauthenticated, "unknown sender")
		}
		return nil, apperr.Wrap(apperr.ErrUpstream, "look up sender: %v", err)
	}

	msg := models.ChatMessage{
		TaskID:      taskID,
		SenderID:    senderID,
		Sender:      sender.Name,
		Text:        text,
		Attachments: attachments,
		Timestamp:   time.Now().UTC(),
	}
	if err := l.db.Create(&msg).Error; err != nil {
		return nil, apperr.Wrap(apperr.ErrUpstream, "save chat message: %v", err)
	}

	if l.bus != nil {
		l.bus.Publish(lifecycle.RoomKey(taskID), "newMessage", msg)
	}
	return &msg, nil
}

// List returns a task's messages in creation order, with attachment
// paths exchanged for signed URLs.
func (l *Log) List(taskID uint) ([]MessageView, error) {
	var msgs []models.ChatMessage
	if err := l.db.Where("task_id = ?", taskID).Order("timestamp asc, id asc").Find(&msgs).Error; err != nil {
		return nil, apperr.Wrap(apperr.ErrUpstream, "load chat history: %v", err)
	}

	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := MessageView{
			ID:        m.ID,
			TaskID:    m.TaskID,
			SenderID:  m.SenderID,
			Sender:    m.Sender,
			Text:      m.Text,
			Timestamp: m.Timestamp,
		}
		for _, att := range m.Attachments {
			if att.Path == "" || att.Type == "" {
				continue
			}
			url, err := l.signer.SignedURL(att.Path, SignedURLTTL)
			if err != nil {
				log.Printf("⚠️ signed URL for %s: %v", att.Path, err)
				continue
			}
			view.Attachments = append(view.Attachments, SignedAttachment{
				URL:  url,
				Type: att.Type,
				Name: att.Name,
			})
		}
		views = append(views, view)
	}
	return views, nil
}
