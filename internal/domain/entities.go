package domain

import "time"

// Message описывает сообщение участника группы в журнале событий.
type Message struct {
	ID        int64     `json:"message_id"`
	UserID    int64     `json:"user_id"`
	ChannelID int64     `json:"channel_id"`
	Text      string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Reaction описывает эмодзи-реакцию участника на сообщение.
type Reaction struct {
	MessageID int64     `json:"message_id"`
	UserID    int64     `json:"user_id"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
}

// UserRef — запись справочника участников.
type UserRef struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// ChannelRef — запись справочника каналов группы.
type ChannelRef struct {
	ChannelID int64  `json:"channel_id"`
	Name      string `json:"name"`
}
