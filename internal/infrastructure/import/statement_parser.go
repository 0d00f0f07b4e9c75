package csvimport

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/storefront/ledger/internal/domain/finance"
	"github.com/storefront/ledger/internal/domain/shared"
)

// StatementDateLayout is the date format of statement rows
const StatementDateLayout = "2006-01-02"

// Statement file columns
const (
	ColumnDate        = "date"
	ColumnDescription = "description"
	ColumnDebit       = "debit"
	ColumnCredit      = "credit"
	ColumnBalance     = "balance"
	ColumnType        = "type"
)

var requiredStatementColumns = []string{ColumnDate, ColumnDescription, ColumnDebit, ColumnCredit, ColumnBalance}

// statementRow is the raw text of one statement line
type statementRow struct {
	Date        string `csv:"date" validate:"required,datetime=2006-01-02"`
	Description string `csv:"description" validate:"required,max=500"`
	Debit       string `csv:"debit" validate:"omitempty,numeric"`
	Credit      string `csv:"credit" validate:"omitempty,numeric"`
	Balance     string `csv:"balance" validate:"required,numeric"`
	Type        string `csv:"type" validate:"omitempty,oneof=deposit withdrawal fee interest other"`
}

// StatementParser parses bank statement CSV files with the columns
// date,description,debit,credit,balance and an optional type.
type StatementParser struct {
	validate  *validator.Validate
	maxRows   int
	maxErrors int
	delimiter rune
}

// StatementParserOption configures a StatementParser
type StatementParserOption func(*StatementParser)

// WithMaxRows limits the number of data rows accepted
func WithMaxRows(n int) StatementParserOption {
	return func(p *StatementParser) {
		p.maxRows = n
	}
}

// WithMaxErrors limits the row errors reported
func WithMaxErrors(n int) StatementParserOption {
	return func(p *StatementParser) {
		p.maxErrors = n
	}
}

// WithStatementDelimiter sets the field delimiter
func WithStatementDelimiter(d rune) StatementParserOption {
	return func(p *StatementParser) {
		p.delimiter = d
	}
}

// NewStatementParser creates a statement parser
func NewStatementParser(opts ...StatementParserOption) *StatementParser {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("csv")
	})
	p := &StatementParser{
		validate:  v,
		maxRows:   10000,
		maxErrors: 50,
		delimiter: ',',
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads every line of the statement. Any invalid row rejects the whole
// file with a validation error naming the offending rows.
func (p *StatementParser) Parse(r io.Reader) ([]finance.StatementLine, error) {
	csvParser, err := NewCSVParser(r, WithDelimiter(p.delimiter))
	if err != nil {
		return nil, fileError(err)
	}
	if err := csvParser.ParseHeader(); err != nil {
		return nil, fileError(err)
	}
	if missing := csvParser.MissingHeaders(requiredStatementColumns); len(missing) > 0 {
		return nil, shared.NewValidationError("MISSING_COLUMNS",
			"Statement is missing required columns: %s", strings.Join(missing, ", "))
	}

	rows, err := csvParser.ReadAllRows()
	if err != nil {
		return nil, shared.NewValidationError("MALFORMED_STATEMENT", "%s", err.Error())
	}
	if len(rows) == 0 {
		return nil, shared.NewValidationError("EMPTY_STATEMENT", "Statement contains no transactions")
	}
	if len(rows) > p.maxRows {
		return nil, shared.NewValidationError("TOO_MANY_ROWS",
			"Statement has %d rows, the limit is %d", len(rows), p.maxRows)
	}

	errs := NewErrorCollection(p.maxErrors)
	lines := make([]finance.StatementLine, 0, len(rows))
	for _, row := range rows {
		line, ok := p.parseRow(row, errs)
		if ok {
			lines = append(lines, line)
		}
	}
	if errs.HasErrors() {
		return nil, shared.NewValidationError("INVALID_STATEMENT_ROWS",
			"Statement rejected, %d invalid rows: %s", len(errs.Rows()), errs.String())
	}
	return lines, nil
}

func (p *StatementParser) parseRow(row *Row, errs *ErrorCollection) (finance.StatementLine, bool) {
	raw := statementRow{
		Date:        row.Get(ColumnDate),
		Description: row.Get(ColumnDescription),
		Debit:       row.Get(ColumnDebit),
		Credit:      row.Get(ColumnCredit),
		Balance:     row.Get(ColumnBalance),
		Type:        strings.ToLower(row.Get(ColumnType)),
	}

	if err := p.validate.Struct(raw); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			errs.Add(RowError{Row: row.LineNumber, Code: ErrCodeMalformedRow, Message: err.Error()})
			return finance.StatementLine{}, false
		}
		for _, fe := range fieldErrs {
			errs.Add(rowErrorFor(row.LineNumber, fe))
		}
		return finance.StatementLine{}, false
	}

	date, _ := time.Parse(StatementDateLayout, raw.Date)
	debit := amountOrZero(raw.Debit)
	credit := amountOrZero(raw.Credit)
	balance := decimal.RequireFromString(raw.Balance)

	switch {
	case debit.IsNegative() || credit.IsNegative():
		errs.Add(RowError{Row: row.LineNumber, Code: ErrCodeInvalidAmount, Message: "debit and credit must not be negative"})
		return finance.StatementLine{}, false
	case debit.IsZero() == credit.IsZero():
		errs.Add(RowError{Row: row.LineNumber, Code: ErrCodeInvalidAmount, Message: "exactly one of debit and credit must be non-zero"})
		return finance.StatementLine{}, false
	}

	return finance.StatementLine{
		Row:         row.LineNumber,
		Date:        date,
		Description: raw.Description,
		Debit:       debit,
		Credit:      credit,
		Balance:     balance,
		Kind:        finance.BankTransactionKind(raw.Type),
	}, true
}

func rowErrorFor(line int, fe validator.FieldError) RowError {
	re := RowError{Row: line, Column: fe.Field(), Value: fmt.Sprint(fe.Value())}
	switch fe.Tag() {
	case "required":
		re.Code = ErrCodeRequiredField
		re.Message = "value is required"
	case "datetime":
		re.Code = ErrCodeInvalidFormat
		re.Message = "expected a date like " + StatementDateLayout
	case "numeric":
		re.Code = ErrCodeInvalidFormat
		re.Message = "expected a decimal number"
	case "oneof":
		re.Code = ErrCodeInvalidValue
		re.Message = "must be one of: " + fe.Param()
	case "max":
		re.Code = ErrCodeInvalidValue
		re.Message = "must be at most " + fe.Param() + " characters"
	default:
		re.Code = ErrCodeInvalidValue
		re.Message = "failed " + fe.Tag() + " validation"
	}
	return re
}

func amountOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(s)
}

func fileError(err error) error {
	switch {
	case errors.Is(err, ErrEmptyFile):
		return shared.NewValidationError("EMPTY_FILE", "Statement file is empty")
	case errors.Is(err, ErrInvalidEncoding):
		return shared.NewValidationError("INVALID_ENCODING", "Statement file must be UTF-8 encoded")
	case errors.Is(err, ErrMissingHeader):
		return shared.NewValidationError("MISSING_HEADER", "Statement file has no header row")
	}
	return shared.NewValidationError("MALFORMED_STATEMENT", "%s", err.Error())
}
