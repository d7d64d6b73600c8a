package store

import "time"

// NopLedger is a no-op delivery ledger used by one-shot check runs. It reports
// steady-state history and never records anything, so every posting prints as
// new without touching the database.
type NopLedger struct{}

func NewNopLedger() *NopLedger { return &NopLedger{} }

func (l *NopLedger) HasAnyHistory(chatID int64) (bool, error) { return true, nil }

func (l *NopLedger) WasSent(chatID int64, link string) (bool, error) { return false, nil }

func (l *NopLedger) RecordSent(chatID int64, link string, sentAt time.Time) error { return nil }

func (l *NopLedger) Trim(chatID int64, keep int) error { return nil }

func (l *NopLedger) Count(chatID int64) (int, error) { return 0, nil }

func (l *NopLedger) DeleteAll(chatID int64) error { return nil }
