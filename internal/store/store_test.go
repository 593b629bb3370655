package store

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpen(t *testing.T) {
	st := openTest(t)

	var name string
	err := st.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='kv'").Scan(&name)
	if err != nil {
		t.Fatalf("kv table not created: %v", err)
	}
	if name != "kv" {
		t.Errorf("expected table name 'kv', got %q", name)
	}
}

func TestOpenFileUsesWAL(t *testing.T) {
	st, err := Open(t.TempDir() + "/watchcrew.db")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	var mode string
	if err := st.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("expected wal journal mode, got %q", mode)
	}
}

func TestGetMissing(t *testing.T) {
	st := openTest(t)

	_, err := st.Get("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutGetOverwrite(t *testing.T) {
	st := openTest(t)

	if err := st.Put("k", []byte("one")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := st.Put("k", []byte("two")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	e, err := st.Get("k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(e.Value) != "two" {
		t.Errorf("expected value 'two', got %q", e.Value)
	}
	if e.Updated.IsZero() {
		t.Error("expected updated time to be set")
	}
}

func TestDeleteAndKeys(t *testing.T) {
	st := openTest(t)

	for _, k := range []string{"news:b", "agents", "news:a"} {
		if err := st.Put(k, []byte("{}")); err != nil {
			t.Fatalf("Put %s failed: %v", k, err)
		}
	}

	keys, err := st.Keys("news:")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "news:a" || keys[1] != "news:b" {
		t.Errorf("unexpected keys: %v", keys)
	}

	if err := st.Delete("news:a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := st.Delete("news:a"); err != nil {
		t.Fatalf("second Delete should be a no-op, got %v", err)
	}
	all, _ := st.Keys("")
	if len(all) != 2 {
		t.Errorf("expected 2 keys left, got %v", all)
	}
}

func TestAgentsDefaultEmpty(t *testing.T) {
	st := openTest(t)

	agents, err := st.Agents()
	if err != nil {
		t.Fatalf("Agents failed: %v", err)
	}
	if agents == nil || len(agents) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", agents)
	}
}

func TestAgentsRoundTripKeepsRecords(t *testing.T) {
	st := openTest(t)

	in := []json.RawMessage{
		json.RawMessage(`{"name":"민수","team":"Kia Tigers","mood":"hyped"}`),
	}
	if err := st.SaveAgents(in); err != nil {
		t.Fatalf("SaveAgents failed: %v", err)
	}
	out, err := st.Agents()
	if err != nil {
		t.Fatalf("Agents failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 agent, got %d", len(out))
	}
	var rec map[string]string
	if err := json.Unmarshal(out[0], &rec); err != nil {
		t.Fatalf("stored record is not JSON: %v", err)
	}
	if rec["mood"] != "hyped" {
		t.Errorf("unknown fields must survive storage, got %v", rec)
	}
}

func TestNewsPerGame(t *testing.T) {
	st := openTest(t)

	news, updated, err := st.News("250523_HTSS")
	if err != nil {
		t.Fatalf("News failed: %v", err)
	}
	if len(news) != 0 || !updated.IsZero() {
		t.Errorf("expected empty cache, got %v at %v", news, updated)
	}

	if err := st.SaveNews("250523_HTSS", map[string]string{"Kia Tigers": "연승"}); err != nil {
		t.Fatalf("SaveNews failed: %v", err)
	}
	if err := st.SaveNews("250524_LGOB", map[string]string{"LG Twins": "휴식"}); err != nil {
		t.Fatalf("SaveNews failed: %v", err)
	}

	news, updated, err = st.News("250523_HTSS")
	if err != nil {
		t.Fatalf("News failed: %v", err)
	}
	if news["Kia Tigers"] != "연승" || len(news) != 1 {
		t.Errorf("unexpected news: %v", news)
	}
	if updated.IsZero() {
		t.Error("expected updated time")
	}

	if err := st.ClearNews(); err != nil {
		t.Fatalf("ClearNews failed: %v", err)
	}
	keys, _ := st.Keys("news:")
	if len(keys) != 0 {
		t.Errorf("expected no news keys, got %v", keys)
	}
}

func TestConcurrentAccess(t *testing.T) {
	st := openTest(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			news := map[string]string{"Kia Tigers": string(rune('a' + i))}
			if err := st.SaveNews("250523_HTSS", news); err != nil {
				t.Errorf("SaveNews failed: %v", err)
			}
			if _, _, err := st.News("250523_HTSS"); err != nil {
				t.Errorf("News failed: %v", err)
			}
		}(i)
	}
	wg.Wait()
}
