package models

import "time"

// Space is the content container bound to one Telegram group
type Space struct {
	ID        int64     `json:"id" db:"id"`
	ChatID    int64     `json:"chatId,string" db:"chat_id"`
	Title     string    `json:"title,omitempty" db:"title"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
