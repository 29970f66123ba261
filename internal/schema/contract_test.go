package schema

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"
)

/*
TestTelcoLayout checks the silver column order and that the label sits right
after the categoricals and before the numeric columns.
*/
func TestTelcoLayout(t *testing.T) {
	c := Telco()
	require.Equal(t, "customer_id", c.Key())
	require.Equal(t, "churn", c.Label())

	labeled := c.SilverSchema(true)
	require.Equal(t, 21, labeled.NumFields())
	require.Equal(t, "customer_id", labeled.Field(0).Name)
	require.Equal(t, "churn", labeled.Field(16).Name)
	require.Equal(t, "senior_citizen", labeled.Field(17).Name)
	require.Equal(t, arrow.PrimitiveTypes.Int64, labeled.Field(18).Type)
	require.Equal(t, arrow.PrimitiveTypes.Float64, labeled.Field(20).Type)

	unlabeled := c.SilverSchema(false)
	require.Equal(t, 20, unlabeled.NumFields())
	require.False(t, c.Labeled(unlabeled))
	require.True(t, c.Labeled(labeled))
}

func TestGoldLayout(t *testing.T) {
	c := Telco()
	g := c.GoldSchema(true)
	require.Equal(t, "churn", g.Field(0).Name)
	require.Equal(t, "customer_id", g.Field(1).Name)

	idx := g.FieldIndices("contract_term_months")
	require.Len(t, idx, 1)
	require.Equal(t, arrow.PrimitiveTypes.Int16, g.Field(idx[0]).Type)

	u := c.GoldSchema(false)
	require.Equal(t, g.NumFields()-1, u.NumFields())
	require.False(t, u.HasField("churn"))
	require.True(t, u.HasField("addon_service_ratio"))
	require.True(t, u.HasField("tenure_bucket_id"))
}

/*
TestAccessorsReturnCopies verifies callers cannot mutate the registry through
the slices it hands out.
*/
func TestAccessorsReturnCopies(t *testing.T) {
	c := Telco()
	f, ok := c.Field("gender")
	require.True(t, ok)
	f.Enum[0] = "robot"

	again, _ := c.Field("gender")
	require.Equal(t, "male", again.Enum[0])

	cols := c.CountColumns(CountAddons)
	cols[0] = "x"
	require.Equal(t, "online_security", c.CountColumns(CountAddons)[0])
	require.Len(t, c.CountColumns(CountServices), 8)
}

func TestBucketIndex(t *testing.T) {
	b, ok := Telco().Bucket("tenure_bucket_id")
	require.True(t, ok)
	cases := map[int64]int64{0: 0, 5: 0, 6: 1, 11: 1, 12: 2, 23: 2, 24: 3, 47: 3, 48: 4, 72: 4}
	for in, want := range cases {
		require.Equal(t, want, b.Index(in), "tenure %d", in)
	}
}

func TestEncodingLookup(t *testing.T) {
	c := Telco()
	e, ok := c.Encoding("online_security_id")
	require.True(t, ok)
	v, ok := e.Lookup("no internet service")
	require.True(t, ok)
	require.EqualValues(t, 0, v)
	v, _ = e.Lookup("no")
	require.EqualValues(t, 1, v)
	_, ok = e.Lookup("maybe")
	require.False(t, ok)
}

func TestResolve(t *testing.T) {
	c := Telco()
	res, err := c.Resolve([]string{" customerID ", "Gender", "tenure", "extra", "Churn"})
	require.NoError(t, err)
	require.True(t, res.Labeled)
	require.Equal(t, []string{"extra"}, res.Unknown)

	pos, ok := res.Column("gender")
	require.True(t, ok)
	require.Equal(t, 1, pos)
	_, ok = res.Column("monthly_charges")
	require.False(t, ok)

	res, err = c.Resolve([]string{"customer_id", "monthly_charges"})
	require.NoError(t, err)
	require.False(t, res.Labeled)
}

func TestResolveMissingKey(t *testing.T) {
	_, err := Telco().Resolve([]string{"gender", "tenure"})
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "customer_id", se.Column)
}

func TestResolveAmbiguous(t *testing.T) {
	_, err := Telco().Resolve([]string{"customerID", "tenure", "Tenure"})
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "tenure", se.Column)
}
