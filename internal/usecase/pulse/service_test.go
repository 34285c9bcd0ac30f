package pulse

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-pulse-bot/internal/domain"
)

type stubStore struct {
	messages  []domain.Message
	reactions []domain.Reaction
	users     []domain.UserRef
	channels  []domain.ChannelRef
	trust     map[int64]float64

	msgErr      error
	reactionErr error
	userErr     error
	channelErr  error
	trustErr    error
}

func (s *stubStore) ListMessagesSince(ctx context.Context, since time.Time, limit int) ([]domain.Message, error) {
	if s.msgErr != nil {
		return nil, s.msgErr
	}
	out := s.messages
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubStore) ListReactionsSince(ctx context.Context, since time.Time, limit int) ([]domain.Reaction, error) {
	if s.reactionErr != nil {
		return nil, s.reactionErr
	}
	out := s.reactions
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubStore) ListUsersByIDs(ctx context.Context, ids []int64) ([]domain.UserRef, error) {
	if s.userErr != nil {
		return nil, s.userErr
	}
	return s.users, nil
}

func (s *stubStore) ListChannels(ctx context.Context) ([]domain.ChannelRef, error) {
	if s.channelErr != nil {
		return nil, s.channelErr
	}
	return s.channels, nil
}

func (s *stubStore) TrustScoresByIDs(ctx context.Context, ids []int64) (map[int64]float64, error) {
	if s.trustErr != nil {
		return nil, s.trustErr
	}
	if s.trust == nil {
		return map[int64]float64{}, nil
	}
	return s.trust, nil
}

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{LookbackDays: 30, TrendDays: 14, MaxMessages: 100, MaxReactions: 100, MaxUsers: 100}
}

func newTestService(store *stubStore, opts Options) *Service {
	return NewService(store, zerolog.Nop(), opts)
}

func msgAt(id, userID, channelID int64, text string, daysAgo int) domain.Message {
	return domain.Message{
		ID:        id,
		UserID:    userID,
		ChannelID: channelID,
		Text:      text,
		Timestamp: testNow.AddDate(0, 0, -daysAgo),
	}
}

func TestBuildMessageCapHonored(t *testing.T) {
	store := &stubStore{}
	for i := 0; i < 50; i++ {
		store.messages = append(store.messages, msgAt(int64(i+1), 1, 10, "обычное сообщение средней длины", i%5))
	}
	opts := testOptions()
	opts.MaxMessages = 10
	svc := newTestService(store, opts)

	snap, err := svc.Build(context.Background(), testNow)
	if err != nil {
		t.Fatalf("сборка не должна падать: %v", err)
	}
	if snap.Scope.Messages != 10 {
		t.Fatalf("ожидалось 10 сообщений в окне, получено %d", snap.Scope.Messages)
	}
	if !snap.Scope.MessagesTruncated {
		t.Fatal("усечение сообщений должно быть отмечено в Scope")
	}
	user := snap.Users[1]
	if user == nil || user.MsgCountTotal != 10 {
		t.Fatalf("в агрегате должно быть ровно 10 сообщений, получено %+v", user)
	}
}

func TestBuildSelfReactionExcluded(t *testing.T) {
	store := &stubStore{
		messages: []domain.Message{msgAt(100, 1, 10, "обычное сообщение средней длины", 1)},
		reactions: []domain.Reaction{{
			MessageID: 100,
			UserID:    1,
			Weight:    1,
			CreatedAt: testNow.AddDate(0, 0, -1),
		}},
	}
	svc := newTestService(store, testOptions())

	snap, err := svc.Build(context.Background(), testNow)
	if err != nil {
		t.Fatalf("сборка не должна падать: %v", err)
	}
	if len(snap.TopEdges) != 0 {
		t.Fatalf("реакция на своё сообщение не должна создавать рёбер, получено %d", len(snap.TopEdges))
	}
	user := snap.Users[1]
	// 1 CP за MISC-сообщение + 1 CP за поставленную реакцию
	if user.RawCPTotal != 2 {
		t.Fatalf("ожидалось 2 сырых CP, получено %v", user.RawCPTotal)
	}
	if user.ReactionsGivenTotal != 1 {
		t.Fatalf("реакция реактору должна засчитываться, получено %d", user.ReactionsGivenTotal)
	}
}

func TestBuildReactionEdge(t *testing.T) {
	store := &stubStore{
		messages: []domain.Message{msgAt(100, 1, 10, "обычное сообщение средней длины", 1)},
		reactions: []domain.Reaction{{
			MessageID: 100,
			UserID:    2,
			Weight:    1,
			CreatedAt: testNow.AddDate(0, 0, -1),
		}},
	}
	svc := newTestService(store, testOptions())

	snap, err := svc.Build(context.Background(), testNow)
	if err != nil {
		t.Fatalf("сборка не должна падать: %v", err)
	}
	if len(snap.TopEdges) != 1 {
		t.Fatalf("ожидалось одно ребро, получено %d", len(snap.TopEdges))
	}
	edge := snap.TopEdges[0]
	if edge.Source != 2 || edge.Target != 1 || edge.Weight != 1 {
		t.Fatalf("неверное ребро: %+v", edge)
	}
	// Автор очков за полученную реакцию не получает.
	if snap.Users[1].RawCPTotal != 1 {
		t.Fatalf("автор не должен получать очков за реакцию, получено %v", snap.Users[1].RawCPTotal)
	}
	if snap.Users[2].RawCPTotal != 1 {
		t.Fatalf("реактор должен получить 1 CP, получено %v", snap.Users[2].RawCPTotal)
	}
}

func TestBuildReactionToUnknownMessage(t *testing.T) {
	store := &stubStore{
		reactions: []domain.Reaction{{
			MessageID: 999,
			UserID:    2,
			Weight:    1,
			CreatedAt: testNow.AddDate(0, 0, -1),
		}},
	}
	svc := newTestService(store, testOptions())

	snap, err := svc.Build(context.Background(), testNow)
	if err != nil {
		t.Fatalf("сборка не должна падать: %v", err)
	}
	if len(snap.TopEdges) != 0 {
		t.Fatal("реакция на неизвестное сообщение не должна создавать рёбер")
	}
	if snap.Users[2] == nil || snap.Users[2].RawCPTotal != 1 {
		t.Fatal("реактор всё равно должен получить свои очки")
	}
}

func TestBuildRanksGapless(t *testing.T) {
	store := &stubStore{}
	for userID := int64(1); userID <= 5; userID++ {
		for i := int64(0); i < userID; i++ {
			store.messages = append(store.messages,
				msgAt(userID*100+i, userID, 10, "обычное сообщение средней длины", 1))
		}
	}
	svc := newTestService(store, testOptions())

	snap, err := svc.Build(context.Background(), testNow)
	if err != nil {
		t.Fatalf("сборка не должна падать: %v", err)
	}
	if len(snap.Ranked30d) != 5 || len(snap.RankedTotal) != 5 {
		t.Fatalf("ожидалось 5 участников в обоих рейтингах")
	}
	for i, user := range snap.Ranked30d {
		if user.Rank30d != i+1 {
			t.Fatalf("ранги за 30д должны быть плотными 1..N, на позиции %d ранг %d", i, user.Rank30d)
		}
	}
	for i, user := range snap.RankedTotal {
		if user.RankTotal != i+1 {
			t.Fatalf("общие ранги должны быть плотными 1..N, на позиции %d ранг %d", i, user.RankTotal)
		}
	}
	if snap.Ranked30d[0].UserID != 5 {
		t.Fatalf("самый активный участник должен быть первым, получен %d", snap.Ranked30d[0].UserID)
	}
}

func TestBuildRankTieBrokenByRawCP(t *testing.T) {
	store := &stubStore{trust: map[int64]float64{1: 50, 2: 100}}
	// user 1: 20 MISC-сообщений, траст 50 -> 20 сырых, 10 эффективных
	// user 2: 10 MISC-сообщений, траст 100 -> 10 сырых, 10 эффективных
	for i := int64(0); i < 20; i++ {
		store.messages = append(store.messages, msgAt(100+i, 1, 10, "обычное сообщение средней длины", 1))
	}
	for i := int64(0); i < 10; i++ {
		store.messages = append(store.messages, msgAt(200+i, 2, 10, "обычное сообщение средней длины", 1))
	}
	svc := newTestService(store, testOptions())

	snap, err := svc.Build(context.Background(), testNow)
	if err != nil {
		t.Fatalf("сборка не должна падать: %v", err)
	}
	if snap.Ranked30d[0].UserID != 1 {
		t.Fatalf("при равных эффективных CP выше сырые, получен %d", snap.Ranked30d[0].UserID)
	}
}

func TestBuildIdempotent(t *testing.T) {
	store := &stubStore{
		messages: []domain.Message{
			msgAt(1, 1, 10, "обычное сообщение средней длины", 1),
			msgAt(2, 2, 11, "посмотрите https://example.com", 2),
			msgAt(3, 1, 11, "ок", 3),
		},
		reactions: []domain.Reaction{
			{MessageID: 1, UserID: 2, Weight: 1, CreatedAt: testNow.AddDate(0, 0, -1)},
		},
		channels: []domain.ChannelRef{{ChannelID: 10, Name: "general"}, {ChannelID: 11, Name: "dev"}},
		users:    []domain.UserRef{{UserID: 1, Username: "alice"}, {UserID: 2, Username: "bob"}},
		trust:    map[int64]float64{1: 80, 2: 100},
	}
	svc := newTestService(store, testOptions())

	first, err := svc.Build(context.Background(), testNow)
	if err != nil {
		t.Fatalf("первая сборка: %v", err)
	}
	second, err := svc.Build(context.Background(), testNow)
	if err != nil {
		t.Fatalf("вторая сборка: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("две сборки на одних данных должны быть идентичны")
	}
}

func TestBuildFatalOnMessages(t *testing.T) {
	store := &stubStore{msgErr: errors.New("БД недоступна")}
	svc := newTestService(store, testOptions())
	if _, err := svc.Build(context.Background(), testNow); err == nil {
		t.Fatal("ошибка выборки сообщений должна быть фатальной")
	}
}

func TestBuildDegradedReferences(t *testing.T) {
	store := &stubStore{
		messages:   []domain.Message{msgAt(1, 7, 42, "обычное сообщение средней длины", 1)},
		channelErr: errors.New("нет таблицы channels"),
		userErr:    errors.New("нет таблицы users"),
		trustErr:   errors.New("нет таблицы members"),
	}
	svc := newTestService(store, testOptions())

	snap, err := svc.Build(context.Background(), testNow)
	if err != nil {
		t.Fatalf("деградация справочников не должна быть фатальной: %v", err)
	}
	degraded := map[string]bool{}
	for _, status := range snap.Sources {
		if !status.OK {
			degraded[status.Source] = true
		}
	}
	for _, source := range []string{"channels", "users", "trust"} {
		if !degraded[source] {
			t.Fatalf("источник %s должен быть отмечен деградированным", source)
		}
	}
	user := snap.Users[7]
	if user.Name != "user-7" {
		t.Fatalf("ожидалось синтетическое имя user-7, получено %q", user.Name)
	}
	if user.Trust != DefaultTrust {
		t.Fatalf("ожидался траст по умолчанию, получено %v", user.Trust)
	}
	if len(snap.Channels) != 1 || snap.Channels[0].Name != "channel-42" {
		t.Fatalf("ожидалось синтетическое имя канала channel-42, получено %+v", snap.Channels)
	}
}

func TestBuildUserCapDeterministic(t *testing.T) {
	store := &stubStore{
		messages: []domain.Message{
			msgAt(1, 1, 10, "обычное сообщение средней длины", 1),
			msgAt(2, 2, 10, "обычное сообщение средней длины", 1),
			msgAt(3, 3, 10, "обычное сообщение средней длины", 1),
		},
	}
	opts := testOptions()
	opts.MaxUsers = 2
	svc := newTestService(store, opts)

	snap, err := svc.Build(context.Background(), testNow)
	if err != nil {
		t.Fatalf("сборка не должна падать: %v", err)
	}
	if !snap.Scope.UsersTruncated {
		t.Fatal("усечение участников должно быть отмечено в Scope")
	}
	if len(snap.Users) != 2 {
		t.Fatalf("ожидалось 2 участника, получено %d", len(snap.Users))
	}
	if _, ok := snap.Users[3]; ok {
		t.Fatal("события участников сверх лимита должны отбрасываться")
	}
}

func TestBuildChannelChampion(t *testing.T) {
	store := &stubStore{
		messages: []domain.Message{
			msgAt(1, 1, 10, "обычное сообщение средней длины", 1),
			msgAt(2, 1, 10, "обычное сообщение средней длины", 1),
			msgAt(3, 2, 10, "обычное сообщение средней длины", 1),
		},
		channels: []domain.ChannelRef{{ChannelID: 10, Name: "general"}},
		users:    []domain.UserRef{{UserID: 1, Username: "alice"}, {UserID: 2, Username: "bob"}},
	}
	svc := newTestService(store, testOptions())

	snap, err := svc.Build(context.Background(), testNow)
	if err != nil {
		t.Fatalf("сборка не должна падать: %v", err)
	}
	if len(snap.Channels) != 1 {
		t.Fatalf("ожидался один канал, получено %d", len(snap.Channels))
	}
	row := snap.Channels[0]
	if row.ChampionID != 1 || row.ChampionName != "alice" {
		t.Fatalf("чемпионом должен быть alice, получено %+v", row)
	}
	if row.Messages30d != 3 || row.ActiveUsers != 2 {
		t.Fatalf("неверная статистика канала: %+v", row)
	}
}

func TestBuildHeatmapMondayFirst(t *testing.T) {
	// 2026-08-31 — понедельник.
	monday := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	store := &stubStore{
		messages: []domain.Message{{
			ID:        1,
			UserID:    1,
			ChannelID: 10,
			Text:      "обычное сообщение средней длины",
			Timestamp: monday,
		}},
	}
	svc := newTestService(store, testOptions())

	snap, err := svc.Build(context.Background(), testNow)
	if err != nil {
		t.Fatalf("сборка не должна падать: %v", err)
	}
	if snap.HeatmapMessages[0][9] != 1 {
		t.Fatalf("сообщение в понедельник 09:30 должно попасть в ячейку [0][9]: %+v", snap.HeatmapMessages)
	}
}

func TestBuildCategoryLeadersExcludeZero(t *testing.T) {
	store := &stubStore{
		messages: []domain.Message{
			msgAt(1, 1, 10, "посмотрите https://example.com", 1),
		},
	}
	svc := newTestService(store, testOptions())

	snap, err := svc.Build(context.Background(), testNow)
	if err != nil {
		t.Fatalf("сборка не должна падать: %v", err)
	}
	if len(snap.CategoryLeaders[domain.CategoryInfo]) != 1 {
		t.Fatalf("в INFO должен быть один лидер, получено %d", len(snap.CategoryLeaders[domain.CategoryInfo]))
	}
	if len(snap.CategoryLeaders[domain.CategoryVibe]) != 0 {
		t.Fatal("нулевые записи не должны попадать в лидерборды рубрик")
	}
}
