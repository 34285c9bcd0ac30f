package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-pulse-bot/internal/domain"
	"tg-pulse-bot/internal/infra/metrics"
)

// Postgres реализует порты хранилища событий на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.EventStore  = (*Postgres)(nil)
	_ domain.IngestStore = (*Postgres)(nil)
	_ domain.OpsStore    = (*Postgres)(nil)
)

const (
	// fetchChunkSize — размер страницы при сканировании окна событий.
	fetchChunkSize = 1000
	// idChunkSize — размер пачки идентификаторов в запросах по спискам id.
	idChunkSize = 400
)

// trustIDColumns и trustValueColumns — кандидаты колонок таблицы members.
// Схема различается между инсталляциями, поэтому колонки перебираются
// в фиксированном порядке: выигрывает первая, давшая непустой результат.
var (
	trustIDColumns    = []string{"user_id", "member_id", "tg_user_id", "id"}
	trustValueColumns = []string{"ts", "trust_score", "ts_score", "trust"}
)

// probeTables — таблицы, проверяемые операционным статусом.
var probeTables = []string{"messages", "reactions", "users", "channels", "members"}

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 20*time.Second)
}

// ListMessagesSince возвращает сообщения окна от новых к старым, не более
// limit строк. Чтение постраничное, чтобы не держать курсор на весь кап.
func (p *Postgres) ListMessagesSince(ctx context.Context, since time.Time, limit int) ([]domain.Message, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	out := make([]domain.Message, 0, fetchChunkSize)
	for offset := 0; limit <= 0 || len(out) < limit; offset += fetchChunkSize {
		take := fetchChunkSize
		if limit > 0 && limit-len(out) < take {
			take = limit - len(out)
		}
		start := time.Now()
		rows, err := p.pool.Query(ctx, `
SELECT message_id, user_id, channel_id, COALESCE(content, ''), timestamp
FROM messages
WHERE timestamp >= $1
ORDER BY timestamp DESC
LIMIT $2 OFFSET $3
`, since, take, offset)
		metrics.ObserveNetworkRequest("postgres", "messages_window", "messages", start, err)
		if err != nil {
			return nil, fmt.Errorf("messages window: %w", err)
		}
		fetched := 0
		for rows.Next() {
			var msg domain.Message
			if err := rows.Scan(&msg.ID, &msg.UserID, &msg.ChannelID, &msg.Text, &msg.Timestamp); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan message: %w", err)
			}
			out = append(out, msg)
			fetched++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("messages window rows: %w", err)
		}
		if fetched < take {
			break
		}
	}
	return out, nil
}

// ListReactionsSince возвращает реакции окна от новых к старым, не более
// limit строк.
func (p *Postgres) ListReactionsSince(ctx context.Context, since time.Time, limit int) ([]domain.Reaction, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	out := make([]domain.Reaction, 0, fetchChunkSize)
	for offset := 0; limit <= 0 || len(out) < limit; offset += fetchChunkSize {
		take := fetchChunkSize
		if limit > 0 && limit-len(out) < take {
			take = limit - len(out)
		}
		start := time.Now()
		rows, err := p.pool.Query(ctx, `
SELECT message_id, user_id, COALESCE(weight, 1), created_at
FROM reactions
WHERE created_at >= $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, since, take, offset)
		metrics.ObserveNetworkRequest("postgres", "reactions_window", "reactions", start, err)
		if err != nil {
			return nil, fmt.Errorf("reactions window: %w", err)
		}
		fetched := 0
		for rows.Next() {
			var reaction domain.Reaction
			if err := rows.Scan(&reaction.MessageID, &reaction.UserID, &reaction.Weight, &reaction.CreatedAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan reaction: %w", err)
			}
			out = append(out, reaction)
			fetched++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("reactions window rows: %w", err)
		}
		if fetched < take {
			break
		}
	}
	return out, nil
}

// ListUsersByIDs возвращает записи справочника участников пачками по id.
func (p *Postgres) ListUsersByIDs(ctx context.Context, ids []int64) ([]domain.UserRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	out := make([]domain.UserRef, 0, len(ids))
	for chunkStart := 0; chunkStart < len(ids); chunkStart += idChunkSize {
		end := chunkStart + idChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		start := time.Now()
		rows, err := p.pool.Query(ctx, `
SELECT user_id, COALESCE(username, '')
FROM users
WHERE user_id = ANY($1)
`, ids[chunkStart:end])
		metrics.ObserveNetworkRequest("postgres", "users_by_ids", "users", start, err)
		if err != nil {
			return nil, fmt.Errorf("users by ids: %w", err)
		}
		for rows.Next() {
			var ref domain.UserRef
			if err := rows.Scan(&ref.UserID, &ref.Username); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan user: %w", err)
			}
			out = append(out, ref)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("users rows: %w", err)
		}
	}
	return out, nil
}

// ListChannels возвращает справочник каналов.
func (p *Postgres) ListChannels(ctx context.Context) ([]domain.ChannelRef, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT channel_id, COALESCE(name, '') FROM channels`)
	metrics.ObserveNetworkRequest("postgres", "channels_list", "channels", start, err)
	if err != nil {
		return nil, fmt.Errorf("channels list: %w", err)
	}
	defer rows.Close()

	var out []domain.ChannelRef
	for rows.Next() {
		var ref domain.ChannelRef
		if err := rows.Scan(&ref.ChannelID, &ref.Name); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("channels rows: %w", err)
	}
	return out, nil
}

// TrustScoresByIDs читает траст-скоры из members. Схема таблицы различается
// между инсталляциями, поэтому реальные колонки определяются по
// information_schema: выигрывает первый кандидат из фиксированного порядка.
// Значения ограничиваются диапазоном [0, 100].
func (p *Postgres) TrustScoresByIDs(ctx context.Context, ids []int64) (map[int64]float64, error) {
	if len(ids) == 0 {
		return map[int64]float64{}, nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	idColumn, valueColumn, err := p.resolveTrustColumns(ctx)
	if err != nil {
		return nil, fmt.Errorf("trust columns: %w", err)
	}

	query := fmt.Sprintf(`
SELECT %s, %s
FROM members
WHERE %s = ANY($1)
`, idColumn, valueColumn, idColumn)

	out := map[int64]float64{}
	for chunkStart := 0; chunkStart < len(ids); chunkStart += idChunkSize {
		end := chunkStart + idChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		start := time.Now()
		rows, err := p.pool.Query(ctx, query, ids[chunkStart:end])
		metrics.ObserveNetworkRequest("postgres", "members_trust_"+idColumn, "members", start, err)
		if err != nil {
			return nil, fmt.Errorf("trust scores: %w", err)
		}
		for rows.Next() {
			var id sql.NullInt64
			var value sql.NullFloat64
			if err := rows.Scan(&id, &value); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan trust score: %w", err)
			}
			if !id.Valid || id.Int64 == 0 || !value.Valid {
				continue
			}
			score := value.Float64
			if score < 0 {
				score = 0
			}
			if score > 100 {
				score = 100
			}
			out[id.Int64] = score
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("trust rows: %w", err)
		}
	}
	return out, nil
}

// resolveTrustColumns выбирает существующие колонки members в порядке
// приоритета кандидатов.
func (p *Postgres) resolveTrustColumns(ctx context.Context) (idColumn, valueColumn string, err error) {
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT column_name
FROM information_schema.columns
WHERE table_name = 'members'
`)
	metrics.ObserveNetworkRequest("postgres", "members_columns", "members", start, err)
	if err != nil {
		return "", "", err
	}
	defer rows.Close()

	present := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", "", err
		}
		present[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return "", "", err
	}

	for _, candidate := range trustIDColumns {
		if _, ok := present[candidate]; ok {
			idColumn = candidate
			break
		}
	}
	for _, candidate := range trustValueColumns {
		if _, ok := present[candidate]; ok {
			valueColumn = candidate
			break
		}
	}
	if idColumn == "" || valueColumn == "" {
		return "", "", errors.New("таблица members не содержит нужных колонок")
	}
	return idColumn, valueColumn, nil
}

// UpsertChannel сохраняет канал справочника.
func (p *Postgres) UpsertChannel(ctx context.Context, channel domain.ChannelRef) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO channels (channel_id, name)
VALUES ($1, $2)
ON CONFLICT (channel_id) DO UPDATE SET name=EXCLUDED.name
`, channel.ChannelID, channel.Name)
	metrics.ObserveNetworkRequest("postgres", "channels_upsert", "channels", start, err)
	return err
}

// SaveMessages сохраняет сообщения батчем.
func (p *Postgres) SaveMessages(ctx context.Context, messages []domain.Message) error {
	if len(messages) == 0 {
		return nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, msg := range messages {
		batch.Queue(`
INSERT INTO messages (message_id, user_id, channel_id, content, timestamp)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (message_id) DO UPDATE SET content=EXCLUDED.content
`, msg.ID, msg.UserID, msg.ChannelID, msg.Text, msg.Timestamp)
	}
	start := time.Now()
	br := p.pool.SendBatch(ctx, batch)
	metrics.ObserveNetworkRequest("postgres", "messages_send_batch", "messages", start, nil)
	defer br.Close()
	for range messages {
		start = time.Now()
		_, err := br.Exec()
		metrics.ObserveNetworkRequest("postgres", "messages_batch_exec", "messages", start, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveReactions сохраняет реакции батчем, дубликаты игнорируются.
func (p *Postgres) SaveReactions(ctx context.Context, reactions []domain.Reaction) error {
	if len(reactions) == 0 {
		return nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, reaction := range reactions {
		batch.Queue(`
INSERT INTO reactions (message_id, user_id, weight, created_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT DO NOTHING
`, reaction.MessageID, reaction.UserID, reaction.Weight, reaction.CreatedAt)
	}
	start := time.Now()
	br := p.pool.SendBatch(ctx, batch)
	metrics.ObserveNetworkRequest("postgres", "reactions_send_batch", "reactions", start, nil)
	defer br.Close()
	for range reactions {
		start = time.Now()
		_, err := br.Exec()
		metrics.ObserveNetworkRequest("postgres", "reactions_batch_exec", "reactions", start, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// ProbeTables проверяет доступность каждой таблицы хранилища одной
// пробной строкой. Ошибка одной таблицы не мешает проверке остальных.
func (p *Postgres) ProbeTables(ctx context.Context) []domain.TableStatus {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	statuses := make([]domain.TableStatus, 0, len(probeTables))
	for _, table := range probeTables {
		status := domain.TableStatus{Table: table}
		var one int
		start := time.Now()
		err := p.pool.QueryRow(ctx, fmt.Sprintf(`SELECT 1 FROM %s LIMIT 1`, table)).Scan(&one)
		metrics.ObserveNetworkRequest("postgres", "probe_"+table, table, start, err)
		switch {
		case err == nil:
			status.Available = true
			status.Sampled = 1
		case errors.Is(err, pgx.ErrNoRows):
			status.Available = true
		default:
			status.Err = err.Error()
		}
		statuses = append(statuses, status)
	}
	return statuses
}
