package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// StatementType identifies one of the three financial statements.
type StatementType string

const (
	IncomeStatement StatementType = "income_statement"
	BalanceSheet    StatementType = "balance_sheet"
	CashFlow        StatementType = "cash_flow"
)

// StatementOrder is the fixed processing order for one analysis run.
var StatementOrder = []StatementType{IncomeStatement, BalanceSheet, CashFlow}

// Function returns the provider's query function name for this statement.
func (s StatementType) Function() string {
	switch s {
	case IncomeStatement:
		return "INCOME_STATEMENT"
	case BalanceSheet:
		return "BALANCE_SHEET"
	case CashFlow:
		return "CASH_FLOW"
	}
	return ""
}

// DisplayName returns a human-readable name, used for logs and sheet titles.
func (s StatementType) DisplayName() string {
	switch s {
	case IncomeStatement:
		return "Income Statement"
	case BalanceSheet:
		return "Balance Sheet"
	case CashFlow:
		return "Cash Flow"
	}
	return string(s)
}

// Period selects annual or quarterly reports.
type Period string

const (
	Annual  Period = "annual"
	Quarter Period = "quarter"
)

// ParsePeriod normalizes user input into a Period.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case Annual:
		return Annual, nil
	case Quarter:
		return Quarter, nil
	}
	return "", fmt.Errorf("invalid period %q (want %q or %q)", s, Annual, Quarter)
}

// ReportsKey returns the JSON field holding the report array for this period.
func (p Period) ReportsKey() string {
	if p == Quarter {
		return "quarterlyReports"
	}
	return "annualReports"
}

// Limit returns how many rows a request for the given number of years keeps.
func (p Period) Limit(years int) int {
	if p == Quarter {
		return years * 4
	}
	return years
}

// FiscalDateField is the date field every report row carries; it drives
// sorting and windowing.
const FiscalDateField = "fiscalDateEnding"

// Row is a single report object as received from the provider. Field order
// is preserved so exports mirror the provider schema.
type Row struct {
	fields []string
	values map[string]string
}

// NewRow builds a row from ordered field/value pairs. Used by tests and fakes.
func NewRow(pairs ...[2]string) Row {
	r := Row{values: make(map[string]string, len(pairs))}
	for _, p := range pairs {
		r.fields = append(r.fields, p[0])
		r.values[p[0]] = p[1]
	}
	return r
}

// Fields returns the field names in provider order.
func (r Row) Fields() []string { return r.fields }

// Get returns the value for a field name.
func (r Row) Get(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// FiscalDateEnding returns the row's fiscal date, or "" when absent.
func (r Row) FiscalDateEnding() string {
	return r.values[FiscalDateField]
}

// UnmarshalJSON decodes a flat report object, recording key order. Scalar
// values are normalized to strings; nested values are rejected.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("report row: expected object, got %v", tok)
	}

	r.fields = nil
	r.values = make(map[string]string)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		var val string
		switch v := valTok.(type) {
		case string:
			val = v
		case json.Number:
			val = v.String()
		case bool:
			val = strconv.FormatBool(v)
		case nil:
			val = ""
		default:
			return fmt.Errorf("report row: field %q has a nested value", key)
		}
		if _, dup := r.values[key]; !dup {
			r.fields = append(r.fields, key)
		}
		r.values[key] = val
	}
	_, err = dec.Token() // closing brace
	return err
}

// MarshalJSON writes the row back out in provider field order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[f])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Financials maps each statement type to its report rows, oldest first.
// A run always produces all three keys, even when a fetch degraded to an
// empty table.
type Financials map[StatementType][]Row

// PriceSeries maps a 4-digit calendar year label to a year-end closing
// price. A nil value marks a year with no trading data.
type PriceSeries map[string]*float64
