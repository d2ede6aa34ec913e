package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/vending/internal/core/domain"
)

const mysqlErrDuplicateEntry = 1062

const createSalesTable = `
	CREATE TABLE IF NOT EXISTS sales (
		id            VARCHAR(36)    NOT NULL PRIMARY KEY,
		tx_id         VARCHAR(36)    NOT NULL,
		code          VARCHAR(64)    NOT NULL,
		position      INT            NOT NULL,
		price         DECIMAL(12, 2) NOT NULL,
		change_amount DECIMAL(12, 2) NULL,
		method        VARCHAR(16)    NOT NULL,
		created_at    DATETIME(6)    NOT NULL,
		INDEX idx_sales_code (code)
	)`

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createSalesTable); err != nil {
		return fmt.Errorf("create sales table: %w", err)
	}
	return nil
}

// RecordSale inserts the sale. Replaying an already recorded sale is a no-op.
func (m *MySQLAdapter) RecordSale(ctx context.Context, sale domain.Sale) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO sales (id, tx_id, code, position, price, change_amount, method, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.TxID.String(), sale.Code, sale.Position, sale.Price,
		sale.Change, string(sale.Method), sale.CreatedAt,
	)
	if isDuplicateEntry(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var (
		sale   domain.Sale
		txID   string
		method string
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, tx_id, code, position, price, change_amount, method, created_at
		FROM sales WHERE id = ?`, id,
	).Scan(&sale.ID, &txID, &sale.Code, &sale.Position, &sale.Price, &sale.Change, &method, &sale.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query sale: %w", err)
	}

	if err := sale.TxID.UnmarshalText([]byte(txID)); err != nil {
		return nil, fmt.Errorf("parse tx id: %w", err)
	}
	sale.Method = domain.PaymentMethod(method)
	return &sale, nil
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry
}
