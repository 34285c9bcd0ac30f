package mtproto

import (
	"context"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/rs/zerolog"

	"tg-pulse-bot/internal/domain"
)

// Collector реализует выгрузку истории группы через gotd.
type Collector struct {
	client *telegram.Client
	log    zerolog.Logger
}

// NewCollector создаёт MTProto клиент на базе токенов.
func NewCollector(apiID int, apiHash string, session telegram.SessionStorage, log zerolog.Logger) (*Collector, error) {
	client := telegram.NewClient(apiID, apiHash, telegram.Options{SessionStorage: session})
	return &Collector{client: client, log: log}, nil
}

// CollectWindow собирает сообщения и реакции канала за окно since..now.
func (c *Collector) CollectWindow(ctx context.Context, channel domain.ChannelRef, since time.Time) ([]domain.Message, []domain.Reaction, error) {
	err := c.client.Run(ctx, func(ctx context.Context) error {
		// TODO: выгрузка через messages.GetHistory и messages.GetMessageReactionsList.
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	c.log.Warn().Str("channel", channel.Name).Msg("CollectWindow заглушка в MVP")
	now := time.Now().UTC()
	return []domain.Message{{
		ID:        now.UnixNano(),
		UserID:    1,
		ChannelID: channel.ChannelID,
		Text:      "Пример сообщения группы",
		Timestamp: now,
	}}, nil, nil
}

// SessionInMemory хранит сессию в памяти (MVP).
type SessionInMemory struct {
	data []byte
}

// LoadSession загружает сессию.
func (s *SessionInMemory) LoadSession(ctx context.Context) ([]byte, error) {
	return s.data, nil
}

// StoreSession сохраняет сессию.
func (s *SessionInMemory) StoreSession(ctx context.Context, data []byte) error {
	s.data = data
	return nil
}

var _ telegram.SessionStorage = (*SessionInMemory)(nil)
