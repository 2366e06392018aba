// Package backup writes passphrase-encrypted snapshots of the ledger.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"filippo.io/age"

	"bilancio/internal/core"
	"bilancio/internal/sheets"
)

// SnapshotVersion is bumped whenever the snapshot layout changes.
const SnapshotVersion = 1

var (
	ErrEmptyPassphrase = errors.New("empty passphrase")
	ErrVersion         = errors.New("unsupported snapshot version")
)

type Snapshot struct {
	Version      int                `json:"version"`
	CreatedAt    time.Time          `json:"created_at"`
	Categories   []string           `json:"categories"`
	Accounts     []core.Account     `json:"accounts"`
	Transactions []core.Transaction `json:"transactions"`
	Budgets      []core.Budget      `json:"budgets"`
	Goals        []core.Goal        `json:"goals"`
}

// Source is what a snapshot is read from.
type Source interface {
	sheets.TransactionReader
	sheets.TaxonomyReader
	sheets.BudgetReader
	sheets.GoalReader
}

// Collect reads every record from src.
func Collect(ctx context.Context, src Source, now time.Time) (Snapshot, error) {
	snap := Snapshot{Version: SnapshotVersion, CreatedAt: now.UTC()}

	var err error
	if snap.Categories, snap.Accounts, err = src.ListTaxonomy(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("taxonomy: %w", err)
	}
	if snap.Transactions, err = src.ListTransactions(ctx, time.Time{}, time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)); err != nil {
		return Snapshot{}, fmt.Errorf("transactions: %w", err)
	}
	if snap.Budgets, err = src.ListBudgets(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("budgets: %w", err)
	}
	if snap.Goals, err = src.ListGoals(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("goals: %w", err)
	}
	return snap, nil
}

// Encrypt writes snap as JSON to w, sealed with an age scrypt recipient.
// workFactor 0 keeps the age default.
func Encrypt(w io.Writer, snap Snapshot, passphrase string, workFactor int) error {
	if passphrase == "" {
		return ErrEmptyPassphrase
	}
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("scrypt recipient: %w", err)
	}
	if workFactor > 0 {
		recipient.SetWorkFactor(workFactor)
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	enc, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	if _, err := enc.Write(payload); err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	return enc.Close()
}

// Decrypt opens a snapshot written by Encrypt.
func Decrypt(r io.Reader, passphrase string) (Snapshot, error) {
	if passphrase == "" {
		return Snapshot{}, ErrEmptyPassphrase
	}
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return Snapshot{}, fmt.Errorf("scrypt identity: %w", err)
	}
	dec, err := age.Decrypt(r, identity)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decrypt: %w", err)
	}
	payload, err := io.ReadAll(dec)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decrypt: %w", err)
	}

	var snap Snapshot
	if err := json.NewDecoder(bytes.NewReader(payload)).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrVersion, snap.Version)
	}
	return snap, nil
}
