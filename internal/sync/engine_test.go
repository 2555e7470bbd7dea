package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/faeterjconnect/connect/internal/bus"
	"github.com/faeterjconnect/connect/internal/chat"
	"github.com/faeterjconnect/connect/internal/store"
)

const self = "11111111-1111-4111-8111-111111111111"

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func selfID() string { return self }

func msg(conv, id, sender, content string, ms int64) chat.Message {
	return chat.Message{
		ID: id, ConversationID: conv, SenderID: sender, SenderName: "x",
		Content: content, Kind: chat.KindText, Timestamp: time.UnixMilli(ms).UTC(),
	}
}

func TestEngineIngestMessage(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, selfID, nil)

	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	if err := db.UpsertConversation(&store.Conversation{ID: "c1"}); err != nil {
		t.Fatal(err)
	}
	if err := e.IngestMessage(msg("c1", "m1", self, "hello", 1000)); err != nil {
		t.Fatal(err)
	}

	conv, err := db.GetConversation("c1")
	if err != nil {
		t.Fatal(err)
	}
	if conv.LastMessagePreview != "hello" || conv.LastMessageAt != 1000 {
		t.Errorf("conversation not touched: %+v", conv)
	}

	msgs, err := db.ListMessages("c1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hello" || !msgs[0].FromMe {
		t.Errorf("messages = %+v", msgs)
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindSyncMessage {
			t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindSyncMessage)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for sync.message_upserted event")
	}
}

func TestEngineSkipsPlaceholders(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), selfID, nil)

	temp := msg("c1", chat.NewTempID(time.Now()), self, "pending", 1000)
	if err := e.IngestMessage(temp); err != nil {
		t.Fatal(err)
	}
	if err := e.IngestHistoryBatch([]chat.Message{temp}); err != nil {
		t.Fatal(err)
	}
	msgs, _ := db.ListMessages("c1", 0, 10)
	if len(msgs) != 0 {
		t.Errorf("placeholder persisted: %+v", msgs)
	}
}

func TestEngineIngestMessageIdempotent(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), selfID, nil)

	m := msg("c1", "m1", "other", "v1", 1000)
	if err := e.IngestMessage(m); err != nil {
		t.Fatal(err)
	}
	m.Content = "v2"
	if err := e.IngestMessage(m); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("c1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (idempotent)", len(msgs))
	}
	if msgs[0].Content != "v2" || msgs[0].FromMe {
		t.Errorf("message = %+v", msgs[0])
	}
}

func TestEngineIngestHistoryBatch(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, selfID, nil)

	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	batch := []chat.Message{
		msg("a", "m1", "u", "one", 1000),
		msg("a", "m2", "u", "two", 2000),
		msg("b", "m3", "u", "three", 3000),
	}
	for i := 0; i < 2; i++ {
		if err := e.IngestHistoryBatch(batch); err != nil {
			t.Fatal(err)
		}
	}

	msgsA, _ := db.ListMessages("a", 0, 10)
	msgsB, _ := db.ListMessages("b", 0, 10)
	if len(msgsA) != 2 || len(msgsB) != 1 {
		t.Errorf("got %d+%d messages, want 2+1", len(msgsA), len(msgsB))
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindSyncHistory {
			t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindSyncHistory)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for sync.history_batch event")
	}
}

func TestConversationsRoundTripThroughCache(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), selfID, nil)

	list := []chat.Conversation{
		{ID: "c1", Title: "", Participants: []chat.Participant{{UserID: self, Username: "me"}, {UserID: "u2", Username: "ana"}}},
		{ID: "g1", IsGroup: true, Title: "Turma"},
	}
	if err := e.IngestConversations(list); err != nil {
		t.Fatal(err)
	}
	if err := e.IngestMessage(msg("g1", "m1", "u2", "oi", 5000)); err != nil {
		t.Fatal(err)
	}

	cached, err := CachedConversations(db, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cached) != 2 || cached[0].ID != "g1" {
		t.Fatalf("cached = %+v", cached)
	}
	if !cached[0].IsGroup || cached[0].Title != "Turma" {
		t.Errorf("group = %+v", cached[0])
	}
	if got := cached[1].DisplayName(self); got != "ana" {
		t.Errorf("1:1 display name = %q, want ana", got)
	}
}

func TestLastSyncedTracksListAndHistory(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, selfID, nil)

	if at, err := LastSynced(db, ""); err != nil || !at.IsZero() {
		t.Fatalf("LastSynced before ingest = %v, %v", at, err)
	}
	before := time.Now().Add(-time.Second)
	if err := e.IngestConversations([]chat.Conversation{{ID: "c1"}}); err != nil {
		t.Fatal(err)
	}
	if at, _ := LastSynced(db, ""); at.Before(before) {
		t.Errorf("list synced at %v", at)
	}

	e.handleEvent(bus.Event{Kind: bus.KindChatHistory, Payload: chat.HistoryEvent{
		ConversationID: "c1",
		Messages:       []chat.Message{msg("c1", "m1", "u2", "oi", 1000)},
	}})
	if at, _ := LastSynced(db, "c1"); at.Before(before) {
		t.Errorf("history synced at %v", at)
	}
	if at, _ := LastSynced(db, "c2"); !at.IsZero() {
		t.Errorf("untouched conversation synced at %v", at)
	}
}

func TestCachedConversationLookup(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), selfID, nil)
	if err := e.IngestConversations([]chat.Conversation{
		{ID: "c1", Participants: []chat.Participant{{UserID: self, Username: "me"}, {UserID: "u2", Username: "ana"}}},
	}); err != nil {
		t.Fatal(err)
	}
	c, ok, err := CachedConversation(db, "c1")
	if err != nil || !ok {
		t.Fatalf("CachedConversation = %v, %v", ok, err)
	}
	if c.DisplayName(self) != "ana" {
		t.Errorf("display name = %q", c.DisplayName(self))
	}
	if _, ok, err := CachedConversation(db, "missing"); ok || err != nil {
		t.Errorf("missing = %v, %v", ok, err)
	}
}

// TestEngineBusSubscription verifies the engine persists what the chat engine
// publishes.
func TestEngineBusSubscription(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	logger, _ := zap.NewDevelopment()
	e := NewEngine(db, b, selfID, logger)

	e.Start(context.Background())
	defer e.Stop()

	b.Emit(bus.KindChatConfirmed, chat.MessageEvent{
		Message:    msg("bus", "bm1", self, "from bus", 5000),
		ReplacedID: "temp-1-abc",
	})
	b.Emit(bus.KindChatHistory, chat.HistoryEvent{
		ConversationID: "batch",
		Messages: []chat.Message{
			msg("batch", "hm1", "u", "history", 6000),
			msg("batch", "hm2", "u", "history2", 7000),
		},
	})

	waitMessages(t, db, "bus", 1)
	waitMessages(t, db, "batch", 2)
}

func waitMessages(t *testing.T, db *store.DB, conv string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		msgs, err := db.ListMessages(conv, 0, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s: got %d messages, want %d", conv, len(msgs), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
