package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/faeterjconnect/connect/internal/auth"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed() {
		t.Error("second Migrate() should report no change")
	}
	if result.From != 2 || result.Version != 2 {
		t.Errorf("version = %d -> %d, want 2 (init + fts)", result.From, result.Version)
	}
	if !result.Search {
		t.Error("search index missing after migration")
	}
}

func TestMigrateFreshReportsRange(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.SearchMessages("oi", "", 10); !errors.Is(err, ErrNoSearchIndex) {
		t.Errorf("search before migrate = %v, want ErrNoSearchIndex", err)
	}
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Changed() || result.From != 0 || result.Version != 2 {
		t.Errorf("result = %+v", result)
	}
}

func TestMigrateRefusesDirtySchema(t *testing.T) {
	db := testDB(t)
	if _, err := db.Exec(`UPDATE schema_migrations SET dirty = 1`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err == nil || !strings.Contains(err.Error(), "dirty") {
		t.Errorf("Migrate() = %v, want dirty schema error", err)
	}
}

func TestOpenCreatesPrivateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "private.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		t.Errorf("mode = %v, want owner-only", perm)
	}
}

func TestConversationUpsertAndList(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertConversation(&Conversation{ID: "c1", Title: "Ana", LastMessageAt: 1000, LastMessagePreview: "hi"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertConversation(&Conversation{ID: "c2", Title: "Bruno", LastMessageAt: 2000, LastMessagePreview: "yo"}); err != nil {
		t.Fatal(err)
	}
	// A refresh without activity must not erase the preview.
	if err := db.UpsertConversation(&Conversation{ID: "c1", Title: "Ana Clara"}); err != nil {
		t.Fatal(err)
	}

	convs, err := db.ListConversations(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].ID != "c2" {
		t.Errorf("first = %s, want c2 (most recent)", convs[0].ID)
	}
	if convs[1].Title != "Ana Clara" || convs[1].LastMessagePreview != "hi" || convs[1].LastMessageAt != 1000 {
		t.Errorf("c1 = %+v", convs[1])
	}
	if convs[1].Participants != "[]" {
		t.Errorf("participants = %q, want []", convs[1].Participants)
	}
}

func TestTouchConversationIgnoresOlder(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertConversation(&Conversation{ID: "c1", LastMessageAt: 5000, LastMessagePreview: "new"}); err != nil {
		t.Fatal(err)
	}
	if err := db.TouchConversation("c1", 4000, "old"); err != nil {
		t.Fatal(err)
	}
	c, err := db.GetConversation("c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.LastMessagePreview != "new" {
		t.Errorf("preview = %q, want new", c.LastMessagePreview)
	}

	if err := db.TouchConversation("c1", 6000, "newer"); err != nil {
		t.Fatal(err)
	}
	c, _ = db.GetConversation("c1")
	if c.LastMessagePreview != "newer" || c.LastMessageAt != 6000 {
		t.Errorf("after touch = %+v", c)
	}
}

func TestGetConversationMissing(t *testing.T) {
	db := testDB(t)

	c, err := db.GetConversation("missing")
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("expected nil for missing conversation")
	}
}

func TestMessageUpsertIdempotent(t *testing.T) {
	db := testDB(t)

	msg := &Message{ConversationID: "c1", MsgID: "m1", Content: "hello", Timestamp: 1000}
	if err := db.UpsertMessage(msg); err != nil {
		t.Fatal(err)
	}
	msg.Content = "hello edited"
	if err := db.UpsertMessage(msg); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("c1", 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (idempotent upsert failed)", len(msgs))
	}
	if msgs[0].Content != "hello edited" || msgs[0].Kind != "TEXT" {
		t.Errorf("message = %+v", msgs[0])
	}
}

func TestListMessagesKeyset(t *testing.T) {
	db := testDB(t)

	for i, ts := range []int64{1000, 2000, 3000} {
		m := &Message{ConversationID: "c1", MsgID: string(rune('a' + i)), Content: "x", Timestamp: ts}
		if err := db.UpsertMessage(m); err != nil {
			t.Fatal(err)
		}
	}
	msgs, err := db.ListMessages("c1", 3000, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Timestamp != 2000 || msgs[1].Timestamp != 1000 {
		t.Errorf("keyset page = %+v", msgs)
	}
}

func TestSearchMessages(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertMessage(&Message{ConversationID: "c1", MsgID: "m1", Content: "hello world", Timestamp: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(&Message{ConversationID: "c2", MsgID: "m2", Content: "goodbye world", Timestamp: 2000}); err != nil {
		t.Fatal(err)
	}

	results, err := db.SearchMessages("hello", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Message.MsgID != "m1" {
		t.Fatalf("results = %+v", results)
	}

	results, err = db.SearchMessages("world", "c2", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Message.MsgID != "m2" {
		t.Errorf("scoped results = %+v", results)
	}
}

func TestSearchFollowsEdits(t *testing.T) {
	db := testDB(t)

	m := &Message{ConversationID: "c1", MsgID: "m1", Content: "first draft", Timestamp: 1000}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}
	m.Content = "final text"
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}

	if r, _ := db.SearchMessages("draft", "", 10); len(r) != 0 {
		t.Errorf("stale FTS row still matches: %+v", r)
	}
	if r, _ := db.SearchMessages("final", "", 10); len(r) != 1 {
		t.Errorf("edited content not indexed")
	}
}

func TestPurgeMessages(t *testing.T) {
	db := testDB(t)

	_ = db.UpsertConversation(&Conversation{ID: "c1"})
	_ = db.UpsertMessage(&Message{ConversationID: "c1", MsgID: "m1", Content: "bye", Timestamp: 1})
	if err := db.PurgeMessages(); err != nil {
		t.Fatal(err)
	}
	_ = db.SetSyncState("conversations.synced_at", "1")
	if err := db.PurgeMessages(); err != nil {
		t.Fatal(err)
	}
	convs, _ := db.ListConversations(10, 0)
	msgs, _ := db.ListMessages("c1", 0, 10)
	if len(convs) != 0 || len(msgs) != 0 {
		t.Errorf("purge left %d conversations, %d messages", len(convs), len(msgs))
	}
	if v, _ := db.SyncState("conversations.synced_at"); v != "" {
		t.Errorf("purge left sync marker %q", v)
	}
}

func TestSyncState(t *testing.T) {
	db := testDB(t)

	if v, err := db.SyncState("k"); err != nil || v != "" {
		t.Fatalf("missing key = %q, %v", v, err)
	}
	if err := db.SetSyncState("k", "1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetSyncState("k", "2"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.SyncState("k"); v != "2" {
		t.Errorf("value = %q, want 2", v)
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	store := Credentials{DB: testDB(t)}

	c, err := store.LoadCredentials()
	if err != nil || c != nil {
		t.Fatalf("empty store = %v, %v", c, err)
	}

	want := auth.Credentials{
		User:  auth.User{UserID: "3f1c2a9e-8b7d-4c6e-9a5f-1e2d3c4b5a69", Username: "ana", Role: "ALUNO"},
		Token: "tok-1",
	}
	if err := store.SaveCredentials(want); err != nil {
		t.Fatal(err)
	}
	want.Token = "tok-2"
	if err := store.SaveCredentials(want); err != nil {
		t.Fatal(err)
	}

	got, err := store.LoadCredentials()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != want {
		t.Errorf("loaded = %+v, want %+v", got, want)
	}

	if err := store.ClearCredentials(); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.LoadCredentials(); got != nil {
		t.Errorf("after clear = %+v", got)
	}
}
