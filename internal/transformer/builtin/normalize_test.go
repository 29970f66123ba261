package builtin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"churn/internal/features"
	"churn/internal/schema"
	"churn/internal/table"
)

func normalize(t *testing.T, cols []string, rows ...[]any) features.Canonical {
	t.Helper()
	n, err := NewNormalize(schema.Telco())
	require.NoError(t, err)

	raw := table.Raw(cols, rows...)
	defer raw.Release()
	out, err := n.Apply(raw)
	require.NoError(t, err)
	defer out.Release()
	require.EqualValues(t, len(rows), out.NumRows())
	return features.CanonicalAt(out, 0)
}

/*
TestNormalizeApply_Scenario covers a messy raw row: a padded mixed-case id, a
capitalised category and a monthly charge above the allowed range.
*/
func TestNormalizeApply_Scenario(t *testing.T) {
	c := normalize(t,
		[]string{"customerID", "gender", "tenure", "MonthlyCharges", "TotalCharges"},
		[]any{" A100 ", "Male", "5", "200.0", "50.0"},
	)
	require.Equal(t, "a100", *c.CustomerID)
	require.Equal(t, "male", *c.Gender)
	require.EqualValues(t, 5, *c.Tenure)
	require.Nil(t, c.MonthlyCharges)
	require.InDelta(t, 50.0, *c.TotalCharges, 0)
}

/*
TestNormalizeApply_Ranges checks inclusive bounds: values at exactly low or
high survive, anything strictly outside becomes null.
*/
func TestNormalizeApply_Ranges(t *testing.T) {
	tests := []struct {
		name  string
		col   string
		raw   string
		field string
		keep  bool
	}{
		{"tenure_low", "tenure", "0", "tenure", true},
		{"tenure_high", "tenure", "72", "tenure", true},
		{"tenure_above", "tenure", "73", "tenure", false},
		{"tenure_negative", "tenure", "-1", "tenure", false},
		{"tenure_decimal", "tenure", "5.0", "tenure", false},
		{"tenure_garbage", "tenure", "five", "tenure", false},
		{"senior_two", "SeniorCitizen", "2", "senior_citizen", false},
		{"monthly_low", "MonthlyCharges", "18.25", "monthly_charges", true},
		{"monthly_high", "MonthlyCharges", "118.75", "monthly_charges", true},
		{"monthly_below", "MonthlyCharges", "18.24", "monthly_charges", false},
		{"total_low", "TotalCharges", "18.8", "total_charges", true},
		{"total_high", "TotalCharges", "8684.8", "total_charges", true},
		{"total_blank", "TotalCharges", " ", "total_charges", false},
		{"total_padded", "TotalCharges", "\t100.5 ", "total_charges", true},
		{"total_exponent", "TotalCharges", "1e2", "total_charges", true},
		{"total_nan", "TotalCharges", "NaN", "total_charges", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := normalize(t, []string{"customerID", tc.col}, []any{"x", tc.raw})
			got := c.Number(tc.field)
			if tc.keep {
				require.NotNil(t, got)
			} else {
				require.Nil(t, got)
			}
		})
	}
}

/*
TestNormalizeApply_Vocabulary checks that case and whitespace variants of an
allowed value are kept and anything else becomes null.
*/
func TestNormalizeApply_Vocabulary(t *testing.T) {
	c := normalize(t,
		[]string{"customerID", "Contract", "PaymentMethod", "InternetService", "OnlineSecurity", "Churn"},
		[]any{"x", "  Two Year\n", "crypto", "Fiber Optic", "No internet service", "YES"},
	)
	require.Equal(t, "two year", *c.Contract)
	require.Nil(t, c.PaymentMethod)
	require.Equal(t, "fiber optic", *c.InternetService)
	require.Equal(t, "no internet service", *c.OnlineSecurity)
	require.Equal(t, "yes", *c.Churn)
}

func TestNormalizeApply_MissingColumnsAreNull(t *testing.T) {
	n, err := NewNormalize(schema.Telco())
	require.NoError(t, err)
	raw := table.Raw([]string{"customer_id"}, []any{"a"}, []any{nil})
	defer raw.Release()

	out, err := n.Apply(raw)
	require.NoError(t, err)
	defer out.Release()
	require.EqualValues(t, 20, out.NumCols())
	require.EqualValues(t, 2, out.NumRows())
	require.True(t, out.Column(1).IsNull(0))
	require.True(t, out.Column(0).IsNull(1))
}

func TestNormalizeApply_MissingKey(t *testing.T) {
	n, err := NewNormalize(schema.Telco())
	require.NoError(t, err)
	raw := table.Raw([]string{"gender"}, []any{"male"})
	defer raw.Release()

	_, err = n.Apply(raw)
	var se *schema.SchemaError
	require.True(t, errors.As(err, &se))
}

// TestNormalizeKey checks that a requested id normalizes to the same value
// Apply stores in the key column.
func TestNormalizeKey(t *testing.T) {
	n, err := NewNormalize(schema.Telco())
	require.NoError(t, err)

	for _, id := range []string{"7590-VHVEG", " 7590-vhveg\t", "7590-VhVeG"} {
		raw := table.Raw([]string{"customerID"}, []any{id})
		out, err := n.Apply(raw)
		raw.Release()
		require.NoError(t, err)
		stored, ok := table.Text(out.Column(0), 0)
		out.Release()
		require.True(t, ok)

		got, ok := n.Key(id)
		require.True(t, ok, id)
		require.Equal(t, stored, got, id)
		require.Equal(t, "7590-vhveg", got)
	}

	for _, id := range []string{"a\x00b", "caf\xe9"} {
		_, ok := n.Key(id)
		require.False(t, ok, "%q", id)
	}
}
