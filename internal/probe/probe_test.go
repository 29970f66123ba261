package probe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pcsv "churn/internal/parser/csv"
	"churn/internal/schema"
)

func parse(t *testing.T, in string) *Report {
	t.Helper()
	rec, _, err := pcsv.NewParser(pcsv.Options{HasHeader: true}, nil).Parse(strings.NewReader(in))
	require.NoError(t, err)
	defer rec.Release()
	rep, err := Profile(context.Background(), rec, schema.Telco())
	require.NoError(t, err)
	return rep
}

func column(t *testing.T, rep *Report, header string) Column {
	t.Helper()
	for _, c := range rep.Columns {
		if c.Header == header {
			return c
		}
	}
	t.Fatalf("column %q not in report", header)
	return Column{}
}

func TestProfile(t *testing.T) {
	rep := parse(t, "customerID,gender,tenure,Churn,extra\n"+
		"A,Male,1,Yes,x\n"+
		"B,  ,abc,No,y\n"+
		"C,unknown,2,yes,\n")

	require.Equal(t, "telco_customer", rep.Contract)
	require.EqualValues(t, 3, rep.Rows)
	require.True(t, rep.Labeled)

	gender := column(t, rep, "gender")
	require.Equal(t, "gender", gender.Field)
	require.EqualValues(t, 1, gender.Blank)
	require.EqualValues(t, 1, gender.Rejected)
	require.Equal(t, []string{"unknown"}, gender.Examples)
	require.Equal(t, 2, gender.Distinct)

	tenure := column(t, rep, "tenure")
	require.EqualValues(t, 1, tenure.Rejected)
	require.Equal(t, "text", tenure.Inferred)

	churn := column(t, rep, "Churn")
	require.Equal(t, "churn", churn.Field)
	require.Zero(t, churn.Rejected, "case is normalized")
	require.Equal(t, "boolean", churn.Inferred)

	extra := column(t, rep, "extra")
	require.Empty(t, extra.Field)
	require.EqualValues(t, 1, extra.Nulls)
	require.Zero(t, extra.Rejected)

	require.Contains(t, rep.Missing, "partner")
	require.NotContains(t, rep.Missing, "gender")
}

func TestProfileMissingKey(t *testing.T) {
	rec, _, err := pcsv.NewParser(pcsv.Options{HasHeader: true}, nil).Parse(strings.NewReader("gender\nMale\n"))
	require.NoError(t, err)
	defer rec.Release()

	_, err = Profile(context.Background(), rec, schema.Telco())
	var se *schema.SchemaError
	require.True(t, errors.As(err, &se))
}

func TestInferType(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{nil, "text"},
		{[]string{"1", "0"}, "integer"},
		{[]string{"Yes", "no"}, "boolean"},
		{[]string{"29.85", "1"}, "real"},
		{[]string{"29.85", "n/a"}, "text"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, inferType(tc.in), "%v", tc.in)
	}
}
