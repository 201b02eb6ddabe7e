package memory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func testSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "turns.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLite_AppendAndLoad(t *testing.T) {
	store := testSQLiteStore(t)
	ctx := context.Background()

	turns := []Turn{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi there"},
	}
	if err := store.AppendTurns(ctx, "conv1", turns); err != nil {
		t.Fatalf("AppendTurns: %v", err)
	}

	got, err := store.LoadRecent(ctx, "conv1", 10)
	if err != nil {
		t.Fatalf("LoadRecent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d turns, want 2", len(got))
	}
	if got[0].Content != "hello" || got[1].Content != "hi there" {
		t.Errorf("wrong order: %q then %q", got[0].Content, got[1].Content)
	}
	if got[0].ID == "" {
		t.Error("store should assign an id when none is given")
	}
}

func TestSQLite_BatchOrderStable(t *testing.T) {
	// Turns in one batch share a timestamp; ordering must come from the
	// insert sequence, not the clock.
	store := testSQLiteStore(t)
	ctx := context.Background()

	var batch []Turn
	for i := 0; i < 20; i++ {
		batch = append(batch, Turn{Role: RoleUser, Content: fmt.Sprintf("turn %d", i)})
	}
	if err := store.AppendTurns(ctx, "conv1", batch); err != nil {
		t.Fatal(err)
	}

	got, err := store.LoadRecent(ctx, "conv1", 100)
	if err != nil {
		t.Fatal(err)
	}
	for i, turn := range got {
		want := fmt.Sprintf("turn %d", i)
		if turn.Content != want {
			t.Fatalf("position %d = %q, want %q", i, turn.Content, want)
		}
	}
}

func TestSQLite_LoadRecentWindow(t *testing.T) {
	store := testSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		err := store.AppendTurns(ctx, "conv1", []Turn{
			{Role: RoleUser, Content: fmt.Sprintf("msg %d", i)},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.LoadRecent(ctx, "conv1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("loaded %d turns, want 3", len(got))
	}
	// Trailing window, oldest first.
	if got[0].Content != "msg 7" || got[2].Content != "msg 9" {
		t.Errorf("window = %q .. %q, want msg 7 .. msg 9", got[0].Content, got[2].Content)
	}
}

func TestSQLite_ConversationIsolation(t *testing.T) {
	store := testSQLiteStore(t)
	ctx := context.Background()

	store.AppendTurns(ctx, "a", []Turn{{Role: RoleUser, Content: "for a"}})
	store.AppendTurns(ctx, "b", []Turn{{Role: RoleUser, Content: "for b"}})

	got, err := store.LoadRecent(ctx, "a", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "for a" {
		t.Errorf("conversation a = %+v", got)
	}
}

func TestSQLite_ToolFieldsRoundtrip(t *testing.T) {
	store := testSQLiteStore(t)
	ctx := context.Background()

	turns := []Turn{
		{Role: RoleAssistant, Content: "", ToolCalls: `[{"id":"toolu_01"}]`},
		{Role: RoleTool, Content: `{"ok":true}`, ToolCallID: "toolu_01", ToolName: "weather_lookup"},
	}
	if err := store.AppendTurns(ctx, "conv1", turns); err != nil {
		t.Fatal(err)
	}

	got, err := store.LoadRecent(ctx, "conv1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].ToolCalls != `[{"id":"toolu_01"}]` {
		t.Errorf("tool_calls = %q", got[0].ToolCalls)
	}
	if got[1].ToolCallID != "toolu_01" || got[1].ToolName != "weather_lookup" {
		t.Errorf("tool turn fields = %q %q", got[1].ToolCallID, got[1].ToolName)
	}
}

func TestSQLite_EmptyBatchIsNoop(t *testing.T) {
	store := testSQLiteStore(t)
	ctx := context.Background()

	if err := store.AppendTurns(ctx, "conv1", nil); err != nil {
		t.Fatalf("empty batch should succeed: %v", err)
	}
	got, _ := store.LoadRecent(ctx, "conv1", 10)
	if len(got) != 0 {
		t.Errorf("loaded %d turns, want 0", len(got))
	}
}

func TestSQLite_LoadRecentEmptyConversation(t *testing.T) {
	store := testSQLiteStore(t)
	got, err := store.LoadRecent(context.Background(), "nothing-here", 10)
	if err != nil {
		t.Fatalf("LoadRecent on unknown conversation: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("loaded %d turns, want 0", len(got))
	}
}

func TestSQLite_PersistAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "turns.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.AppendTurns(ctx, "conv1", []Turn{{Role: RoleUser, Content: "survives"}}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.LoadRecent(ctx, "conv1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "survives" {
		t.Errorf("after reopen: %+v", got)
	}
}

func TestSQLite_WriteFailureSentinel(t *testing.T) {
	store := testSQLiteStore(t)
	store.Close()

	err := store.AppendTurns(context.Background(), "conv1", []Turn{{Role: RoleUser, Content: "x"}})
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("error = %v, want ErrWriteFailed", err)
	}
}

func TestSQLite_ReadFailureSentinel(t *testing.T) {
	store := testSQLiteStore(t)
	store.Close()

	_, err := store.LoadRecent(context.Background(), "conv1", 10)
	if !errors.Is(err, ErrReadFailed) {
		t.Errorf("error = %v, want ErrReadFailed", err)
	}
}

func TestSQLite_Stats(t *testing.T) {
	store := testSQLiteStore(t)
	ctx := context.Background()

	store.AppendTurns(ctx, "conv1", []Turn{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
	})

	stats := store.Stats()
	if stats["conversations"] != 1 {
		t.Errorf("conversations = %v, want 1", stats["conversations"])
	}
	if stats["turns"] != 2 {
		t.Errorf("turns = %v, want 2", stats["turns"])
	}
}
