package domain

import "time"

// Cell is a single value in a query result: int64, float64, string, bool,
// time.Time or nil.
type Cell = any

// QueryResult is a tabular result set
type QueryResult struct {
	Columns []string `json:"columns"`
	Rows    [][]Cell `json:"rows"`
}

// RowCount returns the number of rows
func (r QueryResult) RowCount() int {
	return len(r.Rows)
}

// ColumnCount returns the width of the first row, or zero when empty.
func (r QueryResult) ColumnCount() int {
	if len(r.Rows) == 0 {
		return 0
	}
	return len(r.Rows[0])
}

// Column returns the values at position col for every row. It panics on ragged
// rows; predicates run behind a recover.
func (r QueryResult) Column(col int) []Cell {
	values := make([]Cell, len(r.Rows))
	for i, row := range r.Rows {
		values[i] = row[col]
	}
	return values
}

// QueryOutcome is what the query engine reports for a submission.
type QueryOutcome struct {
	Success  bool          `json:"success"`
	Result   QueryResult   `json:"result"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// FailedOutcome builds an unsuccessful outcome with the engine's message
func FailedOutcome(message string, elapsed time.Duration) QueryOutcome {
	return QueryOutcome{Error: message, Duration: elapsed}
}
