package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cardbid/auctioneer/internal/auction"
	"github.com/cardbid/auctioneer/internal/cards"
	"github.com/cardbid/auctioneer/internal/database"
	"github.com/cardbid/auctioneer/internal/handler/health"
	"github.com/cardbid/auctioneer/internal/migrations"
	"github.com/cardbid/auctioneer/internal/store"
)

type fakeAuction struct {
	mu sync.Mutex

	status    auction.Status
	startInfo auction.StartInfo
	players   []auction.PlayerRecord
	playerErr error
	startErr  error
	started   int
	bidErr    error
	bids      []auction.BidEntry
	gotBid    auction.BidRequest
	gotList   [2]uint64
}

func (f *fakeAuction) Status() auction.Status       { return f.status }
func (f *fakeAuction) StartInfo() auction.StartInfo { return f.startInfo }

func (f *fakeAuction) Players(context.Context) ([]auction.PlayerRecord, error) {
	return f.players, f.playerErr
}

func (f *fakeAuction) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return f.startErr
}

func (f *fakeAuction) SubmitBid(_ context.Context, req auction.BidRequest) (auction.BidEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotBid = req
	if f.bidErr != nil {
		return auction.BidEntry{}, f.bidErr
	}
	return auction.BidEntry{ID: "b1", SessionID: uint64(req.Message.SessionID), Amount: uint64(req.Message.Amount)}, nil
}

func (f *fakeAuction) Bids(_ context.Context, sessionID uint64, round int) ([]auction.BidEntry, error) {
	f.gotList = [2]uint64{sessionID, uint64(round)}
	return f.bids, nil
}

func testCatalog(t *testing.T) *cards.Catalog {
	t.Helper()
	c, err := cards.NewCatalog([]cards.Card{
		{ID: 1, Name: "Warden", Type: cards.Sentinel, Attack: 3, Defense: 9, Strategy: 4},
		{ID: 2, Name: "Raider", Type: cards.Attacker, Attack: 9, Defense: 2, Strategy: 3},
		{ID: 3, Name: "Bulwark", Type: cards.Defender, Attack: 1, Defense: 8, Strategy: 2},
	})
	if err != nil {
		t.Fatalf("building catalog: %v", err)
	}
	return c
}

func testChat(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := database.Open(context.Background(), database.Memory)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return store.NewSQLiteStore(db)
}

func testDeps(t *testing.T, a Auction) Deps {
	t.Helper()
	return Deps{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Auction: a,
		Catalog: testCatalog(t),
		Chat:    testChat(t),
		Broker:  NewBroker(),
		Checks:  map[string]health.Checker{},
	}
}

func newTestRouter(t *testing.T, a Auction) http.Handler {
	t.Helper()
	return NewRouter(testDeps(t, a))
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func newRequest(method, path, authorization string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
