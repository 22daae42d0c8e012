package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/peergrid/beacon/internal/adapters/signal"
	"github.com/peergrid/beacon/internal/config"
	"github.com/peergrid/beacon/internal/core"
	"github.com/peergrid/beacon/internal/domain"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeStore struct {
	mu         sync.Mutex
	rooms      map[domain.RoomID]domain.RoomRecord
	messages   []domain.ChatMessage
	recordings []domain.Recording
}

func newFakeStore() *fakeStore {
	return &fakeStore{rooms: make(map[domain.RoomID]domain.RoomRecord)}
}

func (s *fakeStore) CreateRoom(_ context.Context, id domain.RoomID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; ok {
		return domain.ErrRoomExists
	}
	s.rooms[id] = domain.RoomRecord{ID: id, PasswordHash: hash, CreatedAt: time.Now().UTC()}
	return nil
}

func (s *fakeStore) RoomRecord(_ context.Context, id domain.RoomID) (domain.RoomRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rooms[id]
	if !ok {
		return domain.RoomRecord{}, domain.ErrRoomNotFound
	}
	return rec, nil
}

func (s *fakeStore) InsertChatMessage(_ context.Context, id domain.RoomID, clientID domain.ClientID, displayName, body string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := time.Now().UTC()
	s.messages = append(s.messages, domain.ChatMessage{
		RoomID: id, ClientID: clientID, DisplayName: displayName, Body: body, SentAt: ts,
	})
	return ts, nil
}

func (s *fakeStore) RecentHistory(_ context.Context, id domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ChatMessage
	for _, m := range s.messages {
		if m.RoomID == id && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) SaveRecording(_ context.Context, rec domain.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordings = append(s.recordings, rec)
	return nil
}

func (s *fakeStore) ListRooms(context.Context, int) ([]domain.RoomRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RoomRecord, 0, len(s.rooms))
	for _, rec := range s.rooms {
		out = append(out, rec)
	}
	return out, nil
}

func (s *fakeStore) ListMessages(context.Context, int) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatMessage(nil), s.messages...), nil
}

func (s *fakeStore) ListRecordings(context.Context, int) ([]domain.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Recording(nil), s.recordings...), nil
}

type nopConn struct{}

func (nopConn) TrySend([]byte) error { return nil }
func (nopConn) Close()               {}

func testConfig() *config.Config {
	return &config.Config{
		Mode:            "release",
		Secret:          "test-secret",
		AdminUser:       "admin",
		AdminPass:       "hunter2",
		MaxParticipants: 3,
		RoomMaxAge:      24 * time.Hour,
		HistoryLimit:    100,
		SendBuffer:      8,
		ReadLimit:       32768,
		WriteTimeout:    time.Second,
		PingPeriod:      50 * time.Second,
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeStore, *core.Registry) {
	t.Helper()
	cfg := testConfig()
	store := newFakeStore()
	reg := core.NewRegistry(store, cfg.MaxParticipants)
	ctl := signal.NewController(reg, cfg)
	return SetupRouter(cfg, reg, store, ctl), store, reg
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, out
}

func TestCreateRoomGeneratesID(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w, body := doJSON(t, r, http.MethodPost, "/api/rooms", map[string]string{})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
	id, _ := body["room_id"].(string)
	if !strings.HasPrefix(id, "room-") || len(id) != len("room-")+8 {
		t.Fatalf("generated room id = %q", id)
	}
}

func TestCreateRoomRejectsLongPassword(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w, _ := doJSON(t, r, http.MethodPost, "/api/rooms", map[string]string{
		"password": strings.Repeat("p", domain.MaxPasswordLen+1),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreateRoomConflict(t *testing.T) {
	r, store, _ := newTestRouter(t)
	if err := store.CreateRoom(context.Background(), "taken", ""); err != nil {
		t.Fatalf("seed: %v", err)
	}
	w, _ := doJSON(t, r, http.MethodPost, "/api/rooms", map[string]string{"room_id": "taken"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestJoinValidatesInput(t *testing.T) {
	r, store, _ := newTestRouter(t)
	if err := store.CreateRoom(context.Background(), "r1", ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := []map[string]string{
		{"room_id": "r1", "display_name": ""},
		{"room_id": "", "display_name": "Alice"},
		{"room_id": "r1", "display_name": strings.Repeat("n", domain.MaxDisplayNameLen+1)},
	}
	for _, body := range cases {
		w, _ := doJSON(t, r, http.MethodPost, "/api/rooms/join", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %v: status = %d, want 400", body, w.Code)
		}
	}
}

func TestJoinRoomNotFound(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w, _ := doJSON(t, r, http.MethodPost, "/api/rooms/join", map[string]string{
		"room_id": "nope", "display_name": "Alice",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestJoinExpiredRoom(t *testing.T) {
	r, store, _ := newTestRouter(t)
	store.mu.Lock()
	store.rooms["old"] = domain.RoomRecord{ID: "old", CreatedAt: time.Now().Add(-25 * time.Hour)}
	store.mu.Unlock()

	w, _ := doJSON(t, r, http.MethodPost, "/api/rooms/join", map[string]string{
		"room_id": "old", "display_name": "Alice",
	})
	if w.Code != http.StatusGone {
		t.Fatalf("status = %d, want 410", w.Code)
	}
}

func TestJoinWrongPassword(t *testing.T) {
	r, store, _ := newTestRouter(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store.mu.Lock()
	store.rooms["locked"] = domain.RoomRecord{ID: "locked", PasswordHash: string(hash), CreatedAt: time.Now()}
	store.mu.Unlock()

	w, _ := doJSON(t, r, http.MethodPost, "/api/rooms/join", map[string]string{
		"room_id": "locked", "display_name": "Alice", "password": "wrong",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/rooms/join", map[string]string{
		"room_id": "locked", "display_name": "Alice", "password": "secret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status with correct password = %d, want 200", w.Code)
	}
}

func TestJoinIssuesRedeemableTokenAndHistory(t *testing.T) {
	r, store, reg := newTestRouter(t)
	ctx := context.Background()
	if err := store.CreateRoom(ctx, "r1", ""); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.InsertChatMessage(ctx, "r1", "c0", "Earlier", "old news"); err != nil {
		t.Fatalf("seed message: %v", err)
	}

	w, body := doJSON(t, r, http.MethodPost, "/api/rooms/join", map[string]string{
		"room_id": "r1", "display_name": "Alice",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}

	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("join response has no token")
	}
	history, _ := body["history"].([]any)
	if len(history) != 1 {
		t.Fatalf("history = %v, want 1 entry", body["history"])
	}

	p, count, err := reg.GetOrCreate("r1").Admit(token, nopConn{})
	if err != nil {
		t.Fatalf("reserved token not redeemable: %v", err)
	}
	if p.DisplayName != "Alice" || count != 1 {
		t.Fatalf("admitted participant = %+v, count = %d", p, count)
	}
}

func TestSaveRecording(t *testing.T) {
	r, store, _ := newTestRouter(t)
	w, _ := doJSON(t, r, http.MethodPost, "/api/recordings", map[string]any{
		"room_id":          "r1",
		"started_at":       time.Now().Add(-time.Minute).UTC().Format(time.RFC3339),
		"duration_seconds": 60,
		"participants":     "Alice, Bob",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.recordings) != 1 || store.recordings[0].DurationSeconds != 60 {
		t.Fatalf("recordings = %+v", store.recordings)
	}
}

func TestAdminDataRequiresSession(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w, _ := doJSON(t, r, http.MethodGet, "/api/admin/data", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAdminLoginAndData(t *testing.T) {
	r, store, _ := newTestRouter(t)
	if err := store.CreateRoom(context.Background(), "r1", ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w, _ := doJSON(t, r, http.MethodPost, "/api/admin/login", map[string]string{
		"username": "admin", "password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad credentials: status = %d, want 401", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/admin/login", map[string]string{
		"username": "admin", "password": "hunter2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status = %d", w.Code)
	}

	res := w.Result()
	defer res.Body.Close()
	cookies := res.Cookies()
	if len(cookies) == 0 {
		t.Fatal("login set no session cookie")
	}

	w, body := doJSON(t, r, http.MethodGet, "/api/admin/data", nil, cookies...)
	if w.Code != http.StatusOK {
		t.Fatalf("data: status = %d, body = %v", w.Code, body)
	}
	rooms, _ := body["rooms"].([]any)
	if len(rooms) != 1 {
		t.Fatalf("admin rooms = %v", body["rooms"])
	}
}
