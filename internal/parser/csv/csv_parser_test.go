package csv_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pcsv "churn/internal/parser/csv"
	"churn/internal/table"
)

const telcoSample = "\uFEFFcustomerID,gender,SeniorCitizen,tenure,TotalCharges\n" +
	"7590-VHVEG,Female,0,1,29.85\n" +
	"5575-GNVDE,Male,0,34, \n" +
	"bad-row,Male\n" +
	"3668-QPYBK,,0,2,108.15\n"

// TestParseSample checks header canonicalisation, empty cells and skipped rows
// on a telco-shaped file.
func TestParseSample(t *testing.T) {
	p := pcsv.NewParser(pcsv.Options{HasHeader: true, Comma: ','}, nil)

	rec, skipped, err := p.Parse(strings.NewReader(telcoSample))
	require.NoError(t, err)
	defer rec.Release()

	require.Equal(t, 1, skipped)
	require.EqualValues(t, 3, rec.NumRows())
	require.Equal(t, "customerID", rec.ColumnName(0), "BOM must be stripped")

	rows := table.Rows(rec)
	require.Equal(t, []any{"7590-VHVEG", "Female", "0", "1", "29.85"}, rows[0])
	// Whitespace-only is kept verbatim; only empty cells become null.
	require.Equal(t, " ", rows[1][4])
	require.Nil(t, rows[2][1])
}

func TestParseHeaderCanonicalisation(t *testing.T) {
	cases := []struct {
		name   string
		header string
		opt    pcsv.Options
		want   []string
	}{
		{
			name:   "trim_and_zero_width",
			header: " customerID ,gen\u200Bder\n",
			want:   []string{"customerID", "gender"},
		},
		{
			name:   "nfc_composition",
			header: "Cafe\u0301,x\n",
			want:   []string{"Caf\u00e9", "x"},
		},
		{
			name:   "header_map",
			header: "Customer ID,Gender\n",
			opt:    pcsv.Options{HeaderMap: map[string]string{"Customer ID": "customer_id"}},
			want:   []string{"customer_id", "Gender"},
		},
		{
			name:   "blank_header_named_by_position",
			header: "a,,c\n",
			want:   []string{"a", "col_1", "c"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opt := tc.opt
			opt.HasHeader = true
			rec, _, err := pcsv.NewParser(opt, nil).Parse(strings.NewReader(tc.header))
			require.NoError(t, err)
			defer rec.Release()

			got := make([]string, rec.NumCols())
			for i := range got {
				got[i] = rec.ColumnName(i)
			}
			require.Equal(t, tc.want, got)
			require.EqualValues(t, 0, rec.NumRows())
		})
	}
}

func TestParseWithoutHeader(t *testing.T) {
	in := "a;b\nc;d\n"

	t.Run("expected_fields", func(t *testing.T) {
		rec, skipped, err := pcsv.NewParser(pcsv.Options{Comma: ';', ExpectedFields: 2}, nil).Parse(strings.NewReader(in))
		require.NoError(t, err)
		defer rec.Release()
		require.Zero(t, skipped)
		require.Equal(t, "col_1", rec.ColumnName(1))
		require.EqualValues(t, 2, rec.NumRows())
	})

	t.Run("width_from_first_row", func(t *testing.T) {
		rec, skipped, err := pcsv.NewParser(pcsv.Options{Comma: ';'}, nil).Parse(strings.NewReader(in + "e\n"))
		require.NoError(t, err)
		defer rec.Release()
		require.Equal(t, 1, skipped)
		require.EqualValues(t, 2, rec.NumCols())
	})
}

func TestParseErrors(t *testing.T) {
	_, _, err := pcsv.NewParser(pcsv.Options{HasHeader: true}, nil).Parse(strings.NewReader(""))
	require.True(t, errors.Is(err, pcsv.ErrNoColumns))

	_, _, err = pcsv.NewParser(pcsv.Options{}, nil).Parse(strings.NewReader(""))
	require.True(t, errors.Is(err, pcsv.ErrNoColumns))

	_, _, err = pcsv.NewParser(pcsv.Options{HasHeader: true, ExpectedFields: 3}, nil).Parse(strings.NewReader("a,b\n"))
	require.ErrorContains(t, err, "expected 3")
}

func TestParseContextCanceled(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("a\n")
	for i := 0; i < 2048; i++ {
		sb.WriteString("x\n")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := pcsv.NewParser(pcsv.Options{HasHeader: true}, nil).ParseContext(ctx, strings.NewReader(sb.String()))
	require.ErrorIs(t, err, context.Canceled)
}

func TestStripHeaderBOM(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, pcsv.StripHeaderBOM([]string{"\uFEFFa", "b"}))
	require.Empty(t, pcsv.StripHeaderBOM(nil))
}
