package clickhouse

import (
	"context"
	"fmt"
	"strings"
)

// StatementError reports a failed statement within a script. Position is
// 1-based and counts non-blank statements in file order.
type StatementError struct {
	Position  int
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d (%s) failed: %v", e.Position, snippet(e.Statement), e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// SplitStatements splits a SQL script on statement-terminating semicolons,
// skipping blank statements and preserving file order. Semicolons inside
// single-quoted string literals do not terminate a statement.
func SplitStatements(script string) []string {
	var statements []string
	var sb strings.Builder
	inString := false

	for i := 0; i < len(script); i++ {
		ch := script[i]
		switch {
		case ch == '\'':
			// '' is an escaped quote inside a string literal
			if inString && i+1 < len(script) && script[i+1] == '\'' {
				sb.WriteByte(ch)
				sb.WriteByte(script[i+1])
				i++
				continue
			}
			inString = !inString
			sb.WriteByte(ch)
		case ch == ';' && !inString:
			if stmt := strings.TrimSpace(sb.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			sb.Reset()
		default:
			sb.WriteByte(ch)
		}
	}

	if stmt := strings.TrimSpace(sb.String()); stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}

// ExecuteScript runs every statement of a script strictly sequentially on
// one connection. The first failure aborts the remaining statements and is
// returned as a *StatementError; statements already executed are not
// rolled back.
func ExecuteScript(ctx context.Context, conn Conn, script string) error {
	for i, stmt := range SplitStatements(script) {
		if err := conn.Exec(ctx, stmt); err != nil {
			return &StatementError{
				Position:  i + 1,
				Statement: stmt,
				Err:       err,
			}
		}
	}
	return nil
}

// snippet shortens a statement for error messages.
func snippet(stmt string) string {
	stmt = strings.Join(strings.Fields(stmt), " ")
	if len(stmt) > 80 {
		return stmt[:80] + "..."
	}
	return stmt
}
