package sqlengine

import (
	"fmt"
	"strconv"
	"strings"

	"churn/internal/schema"
)

// quoteIdent quotes a single identifier for DuckDB.
func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// quoteLit renders s as a SQL string literal.
func quoteLit(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }

// doubleLit renders v as an exact DOUBLE literal.
func doubleLit(v float64) string {
	return "CAST(" + quoteLit(strconv.FormatFloat(v, 'g', -1, 64)) + " AS DOUBLE)"
}

// cutset renders the whitespace cutset as a chr() concatenation so control
// characters never appear raw in the statement.
func cutset(ws string) string {
	parts := make([]string, 0, len(ws))
	for _, r := range ws {
		parts = append(parts, "chr("+strconv.Itoa(int(r))+")")
	}
	return strings.Join(parts, " || ")
}

// stagingColumn is the positional name of raw column i in the staging table.
func stagingColumn(i int) string { return "c" + strconv.Itoa(i) }

// silverSQL builds the normalize, validate and dedup query over a staging
// table of positional VARCHAR columns plus a _row ordinal.
func silverSQL(c *schema.Contract, res schema.Resolution, staging string) string {
	fields := c.SilverFields(res.Labeled)
	ws := cutset(c.Whitespace())

	var clean, typed, outCols []string
	for _, f := range fields {
		name := quoteIdent(f.Name)
		outCols = append(outCols, name)

		src := "CAST(NULL AS VARCHAR)"
		if pos, ok := res.Column(f.Name); ok {
			src = fmt.Sprintf("trim(%s, %s)", stagingColumn(pos), ws)
			if !f.Numeric() {
				src = "lower(" + src + ")"
			}
		}
		clean = append(clean, src+" AS "+name)

		switch f.Type {
		case schema.TypeInteger, schema.TypeFloat:
			sqlType, pattern := "BIGINT", c.IntegerPattern()
			if f.Type == schema.TypeFloat {
				sqlType, pattern = "DOUBLE", c.FloatPattern()
			}
			cast := fmt.Sprintf("TRY_CAST(%s AS %s)", name, sqlType)
			typed = append(typed, fmt.Sprintf(
				"CASE WHEN regexp_full_match(%s, %s) AND %s BETWEEN %s AND %s THEN %s END AS %s",
				name, quoteLit(pattern), cast, doubleLit(f.Min), doubleLit(f.Max), cast, name,
			))
		case schema.TypeCategory:
			lits := make([]string, len(f.Enum))
			for i, v := range f.Enum {
				lits[i] = quoteLit(v)
			}
			typed = append(typed, fmt.Sprintf("CASE WHEN %s IN (%s) THEN %s END AS %s",
				name, strings.Join(lits, ", "), name, name))
		default:
			typed = append(typed, name)
		}
	}

	key := quoteIdent(c.Key())
	var rank, order []string
	order = append(order, key+" ASC NULLS LAST")
	for _, col := range c.DedupOrder() {
		rank = append(rank, quoteIdent(col)+" DESC NULLS LAST")
		order = append(order, quoteIdent(col)+" DESC NULLS LAST")
	}
	rank = append(rank, "_row ASC")
	order = append(order, "_row ASC")

	var b strings.Builder
	b.WriteString("WITH clean AS (\n  SELECT ")
	b.WriteString(strings.Join(clean, ",\n    "))
	b.WriteString(",\n    _row\n  FROM ")
	b.WriteString(quoteIdent(staging))
	b.WriteString("\n), typed AS (\n  SELECT ")
	b.WriteString(strings.Join(typed, ",\n    "))
	b.WriteString(",\n    _row\n  FROM clean\n), ranked AS (\n  SELECT *, row_number() OVER (PARTITION BY ")
	b.WriteString(key)
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(rank, ", "))
	b.WriteString(") AS _rank\n  FROM typed\n)\nSELECT ")
	b.WriteString(strings.Join(outCols, ", "))
	b.WriteString("\nFROM ranked\nWHERE ")
	b.WriteString(key)
	b.WriteString(" IS NULL OR _rank = 1\nORDER BY ")
	b.WriteString(strings.Join(order, ", "))
	return b.String()
}

// goldSQL builds the feature query over a typed silver table with a _row
// ordinal. Output rows keep the silver order.
func goldSQL(c *schema.Contract, labeled bool, silver string) (string, error) {
	var cols []string
	for _, g := range c.GoldColumns(labeled) {
		expr, err := goldExpr(c, g)
		if err != nil {
			return "", err
		}
		cols = append(cols, expr+" AS "+quoteIdent(g.Name))
	}
	return "SELECT " + strings.Join(cols, ",\n  ") +
		"\nFROM " + quoteIdent(silver) + "\nORDER BY _row", nil
}

func goldExpr(c *schema.Contract, g schema.GoldColumn) (string, error) {
	sqlType, err := duckType(g.Type)
	if err != nil {
		return "", fmt.Errorf("gold column %q: %w", g.Name, err)
	}
	switch g.Kind {
	case schema.GoldPassthrough:
		return quoteIdent(g.Ref), nil

	case schema.GoldEncoded:
		e, ok := c.Encoding(g.Ref)
		if !ok {
			return "", fmt.Errorf("gold column %q: no encoding %q", g.Name, g.Ref)
		}
		var b strings.Builder
		b.WriteString("CAST(CASE ")
		b.WriteString(quoteIdent(e.Column))
		for _, code := range e.Codes {
			fmt.Fprintf(&b, " WHEN %s THEN %d", quoteLit(code.Value), code.ID)
		}
		b.WriteString(" END AS ")
		b.WriteString(sqlType)
		b.WriteString(")")
		return b.String(), nil

	case schema.GoldCount:
		return "CAST(" + countExpr(c.CountColumns(g.Ref)) + " AS " + sqlType + ")", nil

	case schema.GoldShare:
		cols := c.CountColumns(g.Ref)
		if len(cols) == 0 {
			return "", fmt.Errorf("gold column %q: empty count set %q", g.Name, g.Ref)
		}
		return fmt.Sprintf("CAST(%s AS DOUBLE) / CAST(%d AS DOUBLE)", countExpr(cols), len(cols)), nil

	case schema.GoldFlag:
		f, ok := c.Flag(g.Ref)
		if !ok {
			return "", fmt.Errorf("gold column %q: no flag %q", g.Name, g.Ref)
		}
		var cond string
		switch f.Op {
		case schema.OpEquals:
			parts := make([]string, len(f.Columns))
			for i, col := range f.Columns {
				parts[i] = quoteIdent(col) + " = " + quoteLit(f.Value)
			}
			cond = strings.Join(parts, " OR ")
		case schema.OpLess:
			cond = quoteIdent(f.Columns[0]) + " < " + doubleLit(f.Threshold)
		case schema.OpGreater:
			cond = quoteIdent(f.Columns[0]) + " > " + doubleLit(f.Threshold)
		default:
			return "", fmt.Errorf("gold column %q: unknown flag op %q", g.Name, f.Op)
		}
		return "CAST((" + cond + ") AS " + sqlType + ")", nil

	case schema.GoldRatio:
		r, ok := c.Ratio(g.Ref)
		if !ok {
			return "", fmt.Errorf("gold column %q: no ratio %q", g.Name, g.Ref)
		}
		num := "CAST(" + quoteIdent(r.Numerator) + " AS DOUBLE)"
		den := "CAST(" + quoteIdent(r.Denominator) + " AS DOUBLE)"
		return fmt.Sprintf("CASE WHEN %s <> 0 THEN %s / %s END", den, num, den), nil

	case schema.GoldBucket:
		bk, ok := c.Bucket(g.Ref)
		if !ok {
			return "", fmt.Errorf("gold column %q: no bucket %q", g.Name, g.Ref)
		}
		col := quoteIdent(bk.Column)
		var b strings.Builder
		fmt.Fprintf(&b, "CAST(CASE WHEN %s IS NULL THEN NULL", col)
		for i, bound := range bk.Bounds {
			fmt.Fprintf(&b, " WHEN %s < %d THEN %d", col, bound, i)
		}
		fmt.Fprintf(&b, " ELSE %d END AS %s)", len(bk.Bounds), sqlType)
		return b.String(), nil
	}
	return "", fmt.Errorf("gold column %q: unknown kind %q", g.Name, g.Kind)
}

func countExpr(cols []string) string {
	if len(cols) == 0 {
		return "0"
	}
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = "(CASE WHEN " + quoteIdent(col) + " = 'yes' THEN 1 ELSE 0 END)"
	}
	return "(" + strings.Join(parts, " + ") + ")"
}
