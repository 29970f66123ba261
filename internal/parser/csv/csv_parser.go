// Package csv parses delimited text into a raw, all-text arrow record. Every
// cell is kept verbatim (no trimming, no casing); the only interpretation is
// that an empty cell becomes null. Cleaning is left to the normalizer.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"churn/internal/parser"
	"churn/internal/table"
)

// Options configures the CSV parser behavior. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// HasHeader indicates whether the first row contains column headers.
	HasHeader bool

	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// ExpectedFields, when > 0, enforces a fixed field count per record. Rows
	// with a different width are skipped (soft-fail) and counted. Without a
	// header it also names the columns col_0..col_N-1.
	ExpectedFields int

	// HeaderMap renames source headers after canonicalisation.
	HeaderMap map[string]string

	// LogSkipped caps how many skipped rows are logged individually. Zero
	// means 400.
	LogSkipped int
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct {
	opt Options
	log *zap.Logger
}

var _ parser.Parser = (*Parser)(nil)

// NewParser constructs a Parser with the provided Options. A nil logger
// discards skip reports.
func NewParser(opt Options, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{opt: opt, log: logger}
}

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// ErrNoColumns is returned when neither a header nor ExpectedFields fixes the
// width and the input has no rows to infer it from.
var ErrNoColumns = errors.New("csv: no columns")

// Parse is ParseContext without cancellation.
func (p *Parser) Parse(r io.Reader) (arrow.Record, int, error) {
	return p.ParseContext(context.Background(), r)
}

// ParseContext consumes CSV records from r and returns them as one raw record
// along with the number of rows that were skipped due to parse errors or
// field-count mismatches. The caller owns the returned record.
func (p *Parser) ParseContext(ctx context.Context, r io.Reader) (arrow.Record, int, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	// Width is enforced below so a bad row is skipped instead of aborting.
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var headers []string
	switch {
	case p.opt.HasHeader:
		h, err := cr.Read()
		if err == io.EOF {
			return nil, 0, ErrNoColumns
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read csv header: %w", err)
		}
		headers = normalizeHeaders(h, p.opt)
	case p.opt.ExpectedFields > 0:
		headers = positional(p.opt.ExpectedFields)
	}
	if p.opt.HasHeader && p.opt.ExpectedFields > 0 && len(headers) != p.opt.ExpectedFields {
		return nil, 0, fmt.Errorf("csv header has %d fields, expected %d", len(headers), p.opt.ExpectedFields)
	}

	limit := p.opt.LogSkipped
	if limit <= 0 {
		limit = 400
	}

	var (
		b       *array.RecordBuilder
		cols    []*array.StringBuilder
		skipped int
	)
	start := func(names []string) {
		b = array.NewRecordBuilder(table.Allocator, rawSchema(names))
		cols = make([]*array.StringBuilder, len(names))
		for i := range cols {
			cols[i] = b.Field(i).(*array.StringBuilder)
		}
	}
	if headers != nil {
		start(headers)
	}
	defer func() {
		if b != nil {
			b.Release()
		}
	}()

	for line := 1; ; line++ {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, skipped, err
			}
		}
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < limit {
				p.log.Warn("skipping csv row", zap.Int("line", line), zap.Error(err))
			}
			skipped++
			continue
		}
		if b == nil {
			start(positional(len(row)))
		}
		if len(row) != len(cols) {
			if skipped < limit {
				p.log.Warn("skipping csv row",
					zap.Int("line", line),
					zap.Int("expected_fields", len(cols)),
					zap.Int("got_fields", len(row)),
				)
			}
			skipped++
			continue
		}
		for i, val := range row {
			if val == "" {
				cols[i].AppendNull()
				continue
			}
			cols[i].Append(val)
		}
	}
	if b == nil {
		return nil, skipped, ErrNoColumns
	}
	if skipped > 0 {
		p.log.Info("csv rows skipped", zap.Int("skipped", skipped))
	}
	return b.NewRecord(), skipped, nil
}

func rawSchema(names []string) *arrow.Schema {
	fields := make([]arrow.Field, len(names))
	for i, n := range names {
		fields[i] = arrow.Field{Name: n, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func positional(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("col_%d", i)
	}
	return out
}

// headerCanon composes header text to NFC and drops format runes (BOMs,
// zero-width joiners and the like) that spreadsheets leave behind. Chains
// carry state, so each call builds its own.
func headerCanon() transform.Transformer {
	return transform.Chain(norm.NFC, runes.Remove(runes.In(unicode.Cf)))
}

// normalizeHeaders produces header keys: BOM stripped, NFC composed, format
// runes dropped, surrounding space trimmed, then renamed through HeaderMap.
// Case is preserved; column resolution is case-insensitive.
func normalizeHeaders(h []string, opt Options) []string {
	res := StripHeaderBOM(append([]string(nil), h...))
	canon := headerCanon()
	for i, col := range res {
		c, _, err := transform.String(canon, col)
		if err != nil {
			c = col
		}
		c = strings.TrimSpace(c)
		if m, ok := opt.HeaderMap[c]; ok {
			c = m
		}
		if c == "" {
			c = fmt.Sprintf("col_%d", i)
		}
		res[i] = c
	}
	return res
}
