package config

import (
	"context"
	"strings"

	"github.com/mmdatafocus/lms_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoanTerminalGuardPlugin keeps returned loans immutable: any gorm UPDATE against
// loan_transactions that does not already constrain status gets `status <> 'returned'`.
//
// NOTE:
// - This does NOT apply to Raw/Exec SQL. Those must carry the status predicate themselves.
// - Maintenance tooling can bypass via appctx.ContextKeySkipLoanGuard.
type LoanTerminalGuardPlugin struct{}

const (
	loanTable          = "loan_transactions"
	loanStatusColumn   = "status"
	loanTerminalStatus = "returned"
)

func NewLoanTerminalGuardPlugin() *LoanTerminalGuardPlugin { return &LoanTerminalGuardPlugin{} }

func (p *LoanTerminalGuardPlugin) Name() string { return "loan_terminal_guard" }

func (p *LoanTerminalGuardPlugin) Initialize(db *gorm.DB) error {
	return db.Callback().Update().Before("gorm:update").Register("loan_terminal_guard:update", loanTerminalGuardCallback)
}

func loanTerminalGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	if shouldBypassLoanGuard(db.Statement.Context) {
		return
	}
	if db.Statement.Table != loanTable {
		return
	}
	if whereHasColumn(db.Statement.Clauses["WHERE"], loanStatusColumn) {
		return
	}
	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Neq{
				Column: clause.Column{Table: db.Statement.Table, Name: loanStatusColumn},
				Value:  loanTerminalStatus,
			},
		},
	})
}

func shouldBypassLoanGuard(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, ok := ctx.Value(appctx.ContextKeySkipLoanGuard).(bool)
	return ok && v
}

func whereHasColumn(c clause.Clause, column string) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasColumn(e, column) {
			return true
		}
	}
	return false
}

func exprHasColumn(e clause.Expression, column string) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIs(v.Column, column)
	case clause.Neq:
		return colIs(v.Column, column)
	case clause.IN:
		return colIs(v.Column, column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasColumn(x, column) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasColumn(x, column) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return containsColumn(v.SQL, column)
	case clause.NamedExpr:
		return containsColumn(v.SQL, column)
	default:
		return false
	}
}

// containsColumn matches column as a whole word, so "status" does not match "status_note".
func containsColumn(sql string, column string) bool {
	sql = strings.ToLower(sql)
	for i := 0; ; {
		j := strings.Index(sql[i:], column)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(column)
		if (start == 0 || !isIdentChar(sql[start-1])) && (end == len(sql) || !isIdentChar(sql[end])) {
			return true
		}
		i = end
	}
}

func isIdentChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func colIs(col any, column string) bool {
	switch c := col.(type) {
	case string:
		name := c
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		return strings.EqualFold(strings.Trim(name, "`"), column)
	case clause.Column:
		return strings.EqualFold(c.Name, column)
	default:
		return false
	}
}
