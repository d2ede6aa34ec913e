package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/vending/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/vending?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := NewMySQLAdapter(db).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema setup failed: %v", err)
	}
	return db
}

func testSale(change decimal.NullDecimal) domain.Sale {
	return domain.Sale{
		ID:        uuid.NewString(),
		TxID:      uuid.New(),
		Code:      "test-cola",
		Position:  3,
		Price:     decimal.RequireFromString("1.50"),
		Change:    change,
		Method:    domain.PaymentMethodCash,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestRecordSale_Success(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	sale := testSale(decimal.NewNullDecimal(decimal.RequireFromString("0.50")))

	if err := adapter.RecordSale(ctx, sale); err != nil {
		t.Fatalf("RecordSale failed: %v", err)
	}

	got, err := adapter.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected sale, got nil")
	}
	if got.TxID != sale.TxID {
		t.Errorf("expected tx %s, got %s", sale.TxID, got.TxID)
	}
	if !got.Price.Equal(sale.Price) {
		t.Errorf("expected price %s, got %s", sale.Price, got.Price)
	}
	if !got.Change.Valid || !got.Change.Decimal.Equal(sale.Change.Decimal) {
		t.Errorf("expected change %s, got %v", sale.Change.Decimal, got.Change)
	}
	if got.Method != domain.PaymentMethodCash {
		t.Errorf("expected cash, got %s", got.Method)
	}

	// Cleanup
	db.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, sale.ID)
}

func TestRecordSale_NoChange(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	sale := testSale(decimal.NullDecimal{})

	if err := adapter.RecordSale(ctx, sale); err != nil {
		t.Fatalf("RecordSale failed: %v", err)
	}

	got, err := adapter.GetSale(ctx, sale.ID)
	if err != nil || got == nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	if got.Change.Valid {
		t.Errorf("expected no change, got %s", got.Change.Decimal)
	}

	db.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, sale.ID)
}

func TestRecordSale_Replay(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	sale := testSale(decimal.NullDecimal{})

	if err := adapter.RecordSale(ctx, sale); err != nil {
		t.Fatalf("RecordSale failed: %v", err)
	}
	if err := adapter.RecordSale(ctx, sale); err != nil {
		t.Errorf("expected replay to be ignored, got: %v", err)
	}

	var count int
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales WHERE id = ?`, sale.ID).Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	db.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, sale.ID)
}

func TestGetSale_NotFound(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	sale, err := NewMySQLAdapter(db).GetSale(context.Background(), "nonexistent-sale")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sale != nil {
		t.Error("expected nil for nonexistent sale")
	}
}

func TestIsDuplicateEntry(t *testing.T) {
	if !isDuplicateEntry(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}) {
		t.Error("expected 1062 to be a duplicate entry")
	}
	if isDuplicateEntry(&mysql.MySQLError{Number: 1213}) {
		t.Error("deadlock is not a duplicate entry")
	}
	if isDuplicateEntry(nil) {
		t.Error("nil is not a duplicate entry")
	}
}
