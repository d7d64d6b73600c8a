package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jordanseet/internwatch/internal/model"
)

// SQLiteStore persists subscribers and the per-subscriber delivery ledger in
// a SQLite database. It implements both model.SubscriberStore and
// model.DeliveryLedger.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS subscribers (
			chat_id    INTEGER PRIMARY KEY,
			roles      TEXT NOT NULL DEFAULT '[]',
			name       TEXT NOT NULL DEFAULT '',
			email      TEXT NOT NULL DEFAULT '',
			contact    TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL DEFAULT '',
			end_date   TEXT NOT NULL DEFAULT '',
			summary    TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS deliveries (
			chat_id      INTEGER NOT NULL,
			posting_link TEXT NOT NULL,
			sent_at      DATETIME NOT NULL,
			PRIMARY KEY (chat_id, posting_link)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// --- model.SubscriberStore ---

// Get returns the subscriber with the given chat ID, or nil if not registered.
func (s *SQLiteStore) Get(chatID int64) (*model.Subscriber, error) {
	row := s.db.QueryRow(
		`SELECT chat_id, roles, name, email, contact, start_date, end_date, summary, created_at
		 FROM subscribers WHERE chat_id = ?`, chatID)

	sub, err := scanSubscriber(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &model.StorageError{Op: fmt.Sprintf("get subscriber %d", chatID), Err: err}
	}
	return sub, nil
}

// List returns all registered subscribers ordered by chat ID.
func (s *SQLiteStore) List() ([]model.Subscriber, error) {
	rows, err := s.db.Query(
		`SELECT chat_id, roles, name, email, contact, start_date, end_date, summary, created_at
		 FROM subscribers ORDER BY chat_id`)
	if err != nil {
		return nil, &model.StorageError{Op: "list subscribers", Err: err}
	}
	defer rows.Close()

	var subs []model.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, &model.StorageError{Op: "scan subscriber", Err: err}
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "list subscribers", Err: err}
	}
	return subs, nil
}

// Upsert inserts or replaces the subscriber row. CreatedAt is preserved on
// update and defaulted to now on first insert.
func (s *SQLiteStore) Upsert(sub *model.Subscriber) error {
	roles, err := json.Marshal(sub.Roles)
	if err != nil {
		return &model.StorageError{Op: fmt.Sprintf("encode roles for %d", sub.ChatID), Err: err}
	}

	createdAt := sub.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.Exec(
		`INSERT INTO subscribers (chat_id, roles, name, email, contact, start_date, end_date, summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET
			roles = excluded.roles,
			name = excluded.name,
			email = excluded.email,
			contact = excluded.contact,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			summary = excluded.summary`,
		sub.ChatID, string(roles),
		sub.Profile.Name, sub.Profile.Email, sub.Profile.Contact,
		sub.Profile.StartDate, sub.Profile.EndDate, sub.Profile.Summary,
		createdAt,
	)
	if err != nil {
		return &model.StorageError{Op: fmt.Sprintf("upsert subscriber %d", sub.ChatID), Err: err}
	}
	return nil
}

// Delete removes the subscriber and all their delivery ledger entries in one
// transaction.
func (s *SQLiteStore) Delete(chatID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &model.StorageError{Op: fmt.Sprintf("delete subscriber %d", chatID), Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM subscribers WHERE chat_id = ?", chatID); err != nil {
		return &model.StorageError{Op: fmt.Sprintf("delete subscriber %d", chatID), Err: err}
	}
	if _, err := tx.Exec("DELETE FROM deliveries WHERE chat_id = ?", chatID); err != nil {
		return &model.StorageError{Op: fmt.Sprintf("delete ledger for %d", chatID), Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &model.StorageError{Op: fmt.Sprintf("delete subscriber %d", chatID), Err: err}
	}
	return nil
}

// --- model.DeliveryLedger ---

// HasAnyHistory reports whether at least one ledger entry exists for the
// subscriber.
func (s *SQLiteStore) HasAnyHistory(chatID int64) (bool, error) {
	var exists int
	err := s.db.QueryRow(
		"SELECT 1 FROM deliveries WHERE chat_id = ? LIMIT 1", chatID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &model.StorageError{Op: fmt.Sprintf("history check for %d", chatID), Err: err}
	}
	return true, nil
}

// WasSent reports whether the (subscriber, link) pair is already recorded.
func (s *SQLiteStore) WasSent(chatID int64, link string) (bool, error) {
	var exists int
	err := s.db.QueryRow(
		"SELECT 1 FROM deliveries WHERE chat_id = ? AND posting_link = ?",
		chatID, link).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &model.StorageError{Op: fmt.Sprintf("sent check for %d", chatID), Err: err}
	}
	return true, nil
}

// SentAt returns when the (subscriber, link) pair was recorded, if it was.
// Not part of model.DeliveryLedger; used by the audit view.
func (s *SQLiteStore) SentAt(chatID int64, link string) (time.Time, bool, error) {
	var sentAt time.Time
	err := s.db.QueryRow(
		"SELECT sent_at FROM deliveries WHERE chat_id = ? AND posting_link = ?",
		chatID, link).Scan(&sentAt)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, &model.StorageError{Op: fmt.Sprintf("sent lookup for %d", chatID), Err: err}
	}
	return sentAt, true, nil
}

// RecordSent records a delivery. Recording an existing pair is a no-op.
func (s *SQLiteStore) RecordSent(chatID int64, link string, sentAt time.Time) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO deliveries (chat_id, posting_link, sent_at) VALUES (?, ?, ?)",
		chatID, link, sentAt.UTC())
	if err != nil {
		return &model.StorageError{Op: fmt.Sprintf("record delivery for %d", chatID), Err: err}
	}
	return nil
}

// Trim deletes all but the keep most-recently-sent entries for the subscriber.
func (s *SQLiteStore) Trim(chatID int64, keep int) error {
	_, err := s.db.Exec(
		`DELETE FROM deliveries
		 WHERE chat_id = ?
		   AND posting_link NOT IN (
			SELECT posting_link FROM deliveries
			WHERE chat_id = ?
			ORDER BY sent_at DESC
			LIMIT ?
		 )`,
		chatID, chatID, keep)
	if err != nil {
		return &model.StorageError{Op: fmt.Sprintf("trim ledger for %d", chatID), Err: err}
	}
	return nil
}

// Count returns the number of ledger entries for the subscriber.
func (s *SQLiteStore) Count(chatID int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM deliveries WHERE chat_id = ?", chatID).Scan(&count)
	if err != nil {
		return 0, &model.StorageError{Op: fmt.Sprintf("count ledger for %d", chatID), Err: err}
	}
	return count, nil
}

// DeleteAll removes every ledger entry for the subscriber.
func (s *SQLiteStore) DeleteAll(chatID int64) error {
	_, err := s.db.Exec("DELETE FROM deliveries WHERE chat_id = ?", chatID)
	if err != nil {
		return &model.StorageError{Op: fmt.Sprintf("clear ledger for %d", chatID), Err: err}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row rowScanner) (*model.Subscriber, error) {
	var sub model.Subscriber
	var roles string
	err := row.Scan(
		&sub.ChatID, &roles,
		&sub.Profile.Name, &sub.Profile.Email, &sub.Profile.Contact,
		&sub.Profile.StartDate, &sub.Profile.EndDate, &sub.Profile.Summary,
		&sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(roles), &sub.Roles); err != nil {
		return nil, fmt.Errorf("decode roles for %d: %w", sub.ChatID, err)
	}
	return &sub, nil
}
