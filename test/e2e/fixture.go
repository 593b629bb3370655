package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/infblueocean/watchcrew/internal/orchestrate"
	"github.com/infblueocean/watchcrew/internal/store"
)

func seedFixtureDB(homeDir string) error {
	dataDir := filepath.Join(homeDir, ".watchcrew")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}
	st, err := store.Open(filepath.Join(dataDir, "watchcrew.db"))
	if err != nil {
		return err
	}
	defer st.Close()

	return st.SaveAgents([]json.RawMessage{
		json.RawMessage(`{"id":"a1","name":"Minsu","team":"Kia Tigers","avatarSeed":"minsu"}`),
		json.RawMessage(`{"id":"b2","name":"Jiyeon","team":"Samsung Lions"}`),
	})
}

// fakeBackend serves a fixed two-line batch on /orchestrate and records
// every request body it receives.
type fakeBackend struct {
	*httptest.Server

	mu       sync.Mutex
	requests []orchestrate.Request
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	return b
}

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/orchestrate":
		var req orchestrate.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			b.mu.Lock()
			b.requests = append(b.requests, req)
			b.mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, `{"speaker":"Minsu","text":"what a swing","team":"kia"}`+"\n")
		io.WriteString(w, `{"speaker":"Jiyeon","text":"lucky hit","team":"samsung"}`+"\n")
	case "/get_news_summary":
		io.WriteString(w, `{"Kia Tigers":"three straight wins"}`)
	case "/reset-row-index":
		io.WriteString(w, `{"status":"ok","row_index":0}`)
	default:
		http.NotFound(w, r)
	}
}

// sawUserMessage reports whether any request carried text as viewer context.
func (b *fakeBackend) sawUserMessage(text string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, req := range b.requests {
		for _, m := range req.UserMessages {
			if strings.Contains(m.Text, text) {
				return true
			}
		}
	}
	return false
}

func readSnapshot(f *os.File) string {
	if err := f.SetReadDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
		return ""
	}
	out := make([]byte, 0, 8192)
	buf := make([]byte, 4096)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			break
		}
	}
	return string(out)
}
