// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/db/driver/pg/internal"
	"github.com/orbitforge/worldmarket/econ"
)

func walletBalance(ctx context.Context, dbe executor, owner econ.EntityID, corp bool) (int64, error) {
	var bal int64
	err := dbe.QueryRowContext(ctx, internal.SelectWalletBalance, owner, corp).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, db.ArchiveError{Code: db.ErrUnknownWallet,
			Detail: fmt.Sprintf("owner %d corp %t", owner, corp)}
	}
	return bal, err
}

// adjustWallet applies delta atomically. The guarded UPDATE affects zero rows
// when the wallet is missing or when a debit would overdraw it; the follow-up
// read distinguishes the two.
func adjustWallet(ctx context.Context, dbe executor, owner econ.EntityID, corp bool, delta int64, kind econ.EntryKind) error {
	n, err := sqlExec(ctx, dbe, internal.AdjustWalletBalance, owner, corp, delta)
	if err != nil {
		return err
	}
	if n == 1 {
		log.Tracef("Wallet %d (corp=%t) adjusted by %d: %s", owner, corp, delta, kind)
		return nil
	}

	if _, err = walletBalance(ctx, dbe, owner, corp); err != nil {
		return err
	}
	return db.ArchiveError{Code: db.ErrInsufficientBalance,
		Detail: fmt.Sprintf("wallet %d (corp=%t) cannot cover %d for %s",
			owner, corp, -delta, kind)}
}

func adjustTreasury(ctx context.Context, dbe executor, delta int64, kind econ.EntryKind) error {
	n, err := sqlExec(ctx, dbe, internal.AdjustTreasuryBalance, delta)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ArchiveError{Code: db.ErrGeneralFailure,
			Detail: "treasury row missing"}
	}
	_, err = sqlExec(ctx, dbe, internal.InsertTreasuryJournal, kind, delta)
	return err
}

func treasuryBalance(ctx context.Context, dbe executor) (int64, error) {
	var bal int64
	err := dbe.QueryRowContext(ctx, internal.SelectTreasuryBalance).Scan(&bal)
	return bal, err
}

// WalletBalance reads one wallet's balance. See db.BankArchiver.
func (a *Archiver) WalletBalance(ctx context.Context, owner econ.EntityID, corp bool) (int64, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return walletBalance(ctx, a.db, owner, corp)
}

// AdjustWallet applies delta to a wallet, failing rather than overdrawing it.
// See db.BankArchiver.
func (a *Archiver) AdjustWallet(ctx context.Context, owner econ.EntityID, corp bool, delta int64, kind econ.EntryKind) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return adjustWallet(ctx, a.db, owner, corp, delta, kind)
}

// CreditCentralBank adds to the world treasury. See db.BankArchiver.
func (a *Archiver) CreditCentralBank(ctx context.Context, amount int64, kind econ.EntryKind) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return adjustTreasury(ctx, a.db, amount, kind)
}

// DebitCentralBank removes from the world treasury. See db.BankArchiver.
func (a *Archiver) DebitCentralBank(ctx context.Context, amount int64, kind econ.EntryKind) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return adjustTreasury(ctx, a.db, -amount, kind)
}

// CentralBankBalance reads the treasury balance. See db.BankArchiver.
func (a *Archiver) CentralBankBalance(ctx context.Context) (int64, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return treasuryBalance(ctx, a.db)
}
