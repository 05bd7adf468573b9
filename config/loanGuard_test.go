package config

import (
	"context"
	"strings"
	"testing"

	"github.com/mmdatafocus/lms_backend/appctx"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type guardedLoan struct {
	ID         int
	Status     string
	FineAmount int
}

func (guardedLoan) TableName() string { return "loan_transactions" }

type unguardedBook struct {
	ID     int
	Status string
}

func (unguardedBook) TableName() string { return "books" }

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "test:test@tcp(127.0.0.1:1)/lms?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	if err := db.Use(NewLoanTerminalGuardPlugin()); err != nil {
		t.Fatalf("register plugin: %v", err)
	}
	return db
}

// builtSQL fails the test unless the statement rendered without touching a connection.
func builtSQL(t *testing.T, tx *gorm.DB) (string, []interface{}) {
	t.Helper()
	if tx.Error != nil {
		t.Fatalf("statement failed: %v", tx.Error)
	}
	sql := tx.Statement.SQL.String()
	if !strings.HasPrefix(sql, "UPDATE ") {
		t.Fatalf("expected an UPDATE statement, got %q", sql)
	}
	return sql, tx.Statement.Vars
}

func TestLoanGuard_AddsTerminalPredicate(t *testing.T) {
	db := dryRunDB(t)
	sql, vars := builtSQL(t, db.Model(&guardedLoan{}).Where("id = ?", 1).Update("fine_amount", 5))
	if !strings.Contains(sql, "`loan_transactions`.`status` <> ?") {
		t.Fatalf("expected terminal predicate, got %s", sql)
	}
	if vars[len(vars)-1] != "returned" {
		t.Fatalf("expected last bind var to be 'returned', got %v", vars)
	}
}

func TestLoanGuard_LeavesStatusConstrainedUpdatesAlone(t *testing.T) {
	db := dryRunDB(t)
	sql, _ := builtSQL(t, db.Model(&guardedLoan{}).
		Where("id = ? AND status IN ?", 1, []string{"issued", "overdue"}).
		Updates(map[string]interface{}{"status": "returned"}))
	if !strings.Contains(sql, "status IN") {
		t.Fatalf("expected the caller's status predicate, got %s", sql)
	}
	if strings.Contains(sql, "<>") {
		t.Fatalf("status-constrained update should not be rewritten: %s", sql)
	}
}

func TestLoanGuard_SkipsOtherTablesAndBypass(t *testing.T) {
	db := dryRunDB(t)
	sql, _ := builtSQL(t, db.Model(&unguardedBook{}).Where("id = ?", 1).Update("status", "x"))
	if !strings.Contains(sql, "`books`") || strings.Contains(sql, "<>") {
		t.Fatalf("books must not be guarded: %s", sql)
	}

	ctx := context.WithValue(context.Background(), appctx.ContextKeySkipLoanGuard, true)
	sql, _ = builtSQL(t, db.WithContext(ctx).Model(&guardedLoan{}).Where("id = ?", 1).Update("fine_amount", 5))
	if !strings.Contains(sql, "`loan_transactions`") || strings.Contains(sql, "<>") {
		t.Fatalf("bypass context ignored: %s", sql)
	}
}

func TestContainsColumn_WholeWordOnly(t *testing.T) {
	cases := map[string]bool{
		"t.status = ?":           true,
		"`status` IN ?":          true,
		"id = ? AND STATUS <> ?": true,
		"status_note = ?":        false,
		"prev_status = ?":        false,
		"id = ?":                 false,
	}
	for sql, want := range cases {
		if got := containsColumn(sql, "status"); got != want {
			t.Fatalf("containsColumn(%q) = %v, want %v", sql, got, want)
		}
	}
}

func TestRetryBackoff_Capped(t *testing.T) {
	if got := retryBackoff(1); got.Seconds() != 2 {
		t.Fatalf("attempt 1: expected 2s, got %s", got)
	}
	if got := retryBackoff(10); got.Seconds() != 30 {
		t.Fatalf("attempt 10: expected cap 30s, got %s", got)
	}
}
