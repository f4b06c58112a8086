package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

// SaveAccount upserts the account metadata fetched for a download.
func (s *Store) SaveAccount(ctx context.Context, account *stripe.Account) error {
	if err := s.ready(); err != nil {
		return err
	}
	if account == nil || account.ID == "" {
		return errors.New("account id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	raw := string(account.Raw)
	if raw == "" {
		raw = "{}"
	}

	_, err := s.DB.ExecContext(ctx, s.rebind(`
		INSERT INTO accounts (id, email, country, default_currency, business_name, charges_enabled, payouts_enabled, created, raw, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`+s.dialect.Upsert(
		[]string{"id"},
		[]string{"email", "country", "default_currency", "business_name", "charges_enabled", "payouts_enabled", "created", "raw", "updated_at"},
	)),
		account.ID,
		account.Email,
		account.Country,
		account.DefaultCurrency,
		account.BusinessName,
		boolToInt(account.ChargesEnabled),
		boolToInt(account.PayoutsEnabled),
		account.Created,
		raw,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

const accountColumns = `id, email, country, default_currency, business_name, charges_enabled, payouts_enabled, created, raw`

// GetAccount loads stored account metadata. It returns nil when the account
// has never been saved.
func (s *Store) GetAccount(ctx context.Context, id string) (*stripe.Account, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, s.rebind(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`), id)
	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// LatestAccount loads the most recently saved account, or nil when none has
// been saved.
func (s *Store) LatestAccount(ctx context.Context) (*stripe.Account, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY updated_at DESC, id LIMIT 1`)
	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("latest account: %w", err)
	}
	return account, nil
}

func scanAccount(row rowScanner) (*stripe.Account, error) {
	var (
		account         stripe.Account
		email           sql.NullString
		country         sql.NullString
		defaultCurrency sql.NullString
		businessName    sql.NullString
		chargesEnabled  int64
		payoutsEnabled  int64
		raw             string
	)
	err := row.Scan(&account.ID, &email, &country, &defaultCurrency, &businessName, &chargesEnabled, &payoutsEnabled, &account.Created, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	account.Email = email.String
	account.Country = country.String
	account.DefaultCurrency = defaultCurrency.String
	account.BusinessName = businessName.String
	account.ChargesEnabled = chargesEnabled != 0
	account.PayoutsEnabled = payoutsEnabled != 0
	account.Raw = []byte(raw)
	return &account, nil
}
