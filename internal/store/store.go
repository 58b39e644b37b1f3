// Package store keeps the off-ledger records of the auction in SQLite: the
// accepted-bid log, the drafted card sequence of each session and the chat
// history.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/cardbid/auctioneer/internal/auction"
)

var ErrInvalidMessage = errors.New("invalid chat message")

// MaxChatBody is the longest chat message accepted, in bytes.
const MaxChatBody = 500

const timeLayout = "2006-01-02T15:04:05.000Z"

type ChatMessage struct {
	ID        string         `json:"id"`
	SessionID uint64         `json:"sessionId"`
	Sender    common.Address `json:"sender"`
	Body      string         `json:"body"`
	SentAt    time.Time      `json:"sentAt"`
}

// SQLiteStore implements auction.BidLog, auction.DraftStore and
// auction.Chat over a migrated database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Bids

func (s *SQLiteStore) AppendBid(ctx context.Context, b auction.BidEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bids (id, session_id, round, card_id, bidder, amount, nonce, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, int64(b.SessionID), b.Round, b.CardID, b.Bidder.Hex(), int64(b.Amount), int64(b.Nonce),
		b.PlacedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("inserting bid %s: %w", b.ID, err)
	}
	return nil
}

// ListBids returns the accepted bids of one round in the order they were
// placed.
func (s *SQLiteStore) ListBids(ctx context.Context, sessionID uint64, round int) ([]auction.BidEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, round, card_id, bidder, amount, nonce, placed_at
		FROM bids
		WHERE session_id = ? AND round = ?
		ORDER BY placed_at, amount
	`, int64(sessionID), round)
	if err != nil {
		return nil, fmt.Errorf("listing bids: %w", err)
	}
	defer rows.Close()

	bids := []auction.BidEntry{}
	for rows.Next() {
		var (
			b                  auction.BidEntry
			sid, amount, nonce int64
			bidder, placedAt   string
		)
		if err := rows.Scan(&b.ID, &sid, &b.Round, &b.CardID, &bidder, &amount, &nonce, &placedAt); err != nil {
			return nil, err
		}
		b.SessionID = uint64(sid)
		b.Bidder = common.HexToAddress(bidder)
		b.Amount = uint64(amount)
		b.Nonce = uint64(nonce)
		if b.PlacedAt, err = time.Parse(timeLayout, placedAt); err != nil {
			return nil, fmt.Errorf("parsing placed_at of bid %s: %w", b.ID, err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// Drafts

func (s *SQLiteStore) SaveDraft(ctx context.Context, sessionID uint64, cardIDs []int) error {
	data, err := json.Marshal(cardIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drafts (session_id, cards) VALUES (?, jsonb(?))
		ON CONFLICT (session_id) DO UPDATE SET cards = excluded.cards
	`, int64(sessionID), string(data))
	if err != nil {
		return fmt.Errorf("saving draft of session %d: %w", sessionID, err)
	}
	return nil
}

// LoadDraft returns nil, nil when no draft was saved for the session.
func (s *SQLiteStore) LoadDraft(ctx context.Context, sessionID uint64) ([]int, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(cards) FROM drafts WHERE session_id = ?`, int64(sessionID),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading draft of session %d: %w", sessionID, err)
	}

	var ids []int
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("decoding draft of session %d: %w", sessionID, err)
	}
	return ids, nil
}

// Chat

func (s *SQLiteStore) PostMessage(ctx context.Context, sessionID uint64, sender common.Address, body string) (ChatMessage, error) {
	if body == "" || len(body) > MaxChatBody {
		return ChatMessage{}, fmt.Errorf("body must be 1 to %d bytes: %w", MaxChatBody, ErrInvalidMessage)
	}
	if sender == (common.Address{}) {
		return ChatMessage{}, fmt.Errorf("missing sender: %w", ErrInvalidMessage)
	}

	m := ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Sender:    sender,
		Body:      body,
		SentAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, sender, body, sent_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, int64(sessionID), sender.Hex(), body, m.SentAt.Format(timeLayout))
	if err != nil {
		return ChatMessage{}, fmt.Errorf("inserting chat message: %w", err)
	}
	return m, nil
}

// ListMessages returns up to limit of the latest messages of a session,
// oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID uint64, limit int) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, body, sent_at FROM (
			SELECT id, sender, body, sent_at, rowid AS seq
			FROM chat_messages
			WHERE session_id = ?
			ORDER BY sent_at DESC, seq DESC
			LIMIT ?
		) ORDER BY sent_at, seq
	`, int64(sessionID), limit)
	if err != nil {
		return nil, fmt.Errorf("listing chat messages: %w", err)
	}
	defer rows.Close()

	msgs := []ChatMessage{}
	for rows.Next() {
		var (
			m              ChatMessage
			sender, sentAt string
		)
		if err := rows.Scan(&m.ID, &sender, &m.Body, &sentAt); err != nil {
			return nil, err
		}
		m.SessionID = sessionID
		m.Sender = common.HexToAddress(sender)
		if m.SentAt, err = time.Parse(timeLayout, sentAt); err != nil {
			return nil, fmt.Errorf("parsing sent_at of message %s: %w", m.ID, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ClearHistory deletes every chat message of a finished session.
func (s *SQLiteStore) ClearHistory(ctx context.Context, sessionID uint64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, int64(sessionID))
	if err != nil {
		return fmt.Errorf("clearing chat of session %d: %w", sessionID, err)
	}
	return nil
}

var (
	_ auction.BidLog     = (*SQLiteStore)(nil)
	_ auction.DraftStore = (*SQLiteStore)(nil)
	_ auction.Chat       = (*SQLiteStore)(nil)
)
