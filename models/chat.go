package models

import "time"

// Attachment is a stored file reference carried by a chat message.
// Path is the object-storage key; clients never see it directly,
// reads resolve it to a signed URL.
type Attachment struct {
	Path string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type ChatMessage struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	TaskID      uint         `json:"task_id" gorm:"not null;index"`
	SenderID    uint         `json:"sender_id" gorm:"not null"`
	Sender      string       `json:"sender" gorm:"not null"` // display name snapshot
	Text        string       `json:"text"`
	Attachments []Attachment `json:"file_urls" gorm:"serializer:json"`
	Timestamp   time.Time    `json:"timestamp" gorm:"not null;index"`
}
