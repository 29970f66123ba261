// Package features derives the engineered (gold) row from one canonical
// (silver) row. Derivation is a pure, row-local function: nothing outside the
// input row and the contract is read, so a batch can be derived row by row or
// a single customer can be scored on its own.
package features

import (
	"github.com/apache/arrow-go/v18/arrow"

	"churn/internal/table"
)

// Canonical is one silver row. A nil pointer is a null value.
type Canonical struct {
	CustomerID       *string
	Gender           *string
	Partner          *string
	Dependents       *string
	PhoneService     *string
	MultipleLines    *string
	InternetService  *string
	OnlineSecurity   *string
	OnlineBackup     *string
	DeviceProtection *string
	TechSupport      *string
	StreamingTV      *string
	StreamingMovies  *string
	Contract         *string
	PaperlessBilling *string
	PaymentMethod    *string
	Churn            *string
	SeniorCitizen    *int64
	Tenure           *int64
	MonthlyCharges   *float64
	TotalCharges     *float64
}

// Text returns the text column called name, or nil when it is null or not a
// text column.
func (c *Canonical) Text(name string) *string {
	switch name {
	case "customer_id":
		return c.CustomerID
	case "gender":
		return c.Gender
	case "partner":
		return c.Partner
	case "dependents":
		return c.Dependents
	case "phone_service":
		return c.PhoneService
	case "multiple_lines":
		return c.MultipleLines
	case "internet_service":
		return c.InternetService
	case "online_security":
		return c.OnlineSecurity
	case "online_backup":
		return c.OnlineBackup
	case "device_protection":
		return c.DeviceProtection
	case "tech_support":
		return c.TechSupport
	case "streaming_tv":
		return c.StreamingTV
	case "streaming_movies":
		return c.StreamingMovies
	case "contract":
		return c.Contract
	case "paperless_billing":
		return c.PaperlessBilling
	case "payment_method":
		return c.PaymentMethod
	case "churn":
		return c.Churn
	}
	return nil
}

// Number returns the numeric column called name as float64, or nil.
func (c *Canonical) Number(name string) *float64 {
	var i *int64
	switch name {
	case "senior_citizen":
		i = c.SeniorCitizen
	case "tenure":
		i = c.Tenure
	case "monthly_charges":
		return c.MonthlyCharges
	case "total_charges":
		return c.TotalCharges
	default:
		return nil
	}
	if i == nil {
		return nil
	}
	f := float64(*i)
	return &f
}

// CanonicalAt reads row i of a silver record. Columns the record lacks are
// left null.
func CanonicalAt(rec arrow.Record, i int) Canonical {
	text := func(name string) *string {
		col, ok := table.Column(rec, name)
		if !ok {
			return nil
		}
		s, ok := table.Text(col, i)
		if !ok {
			return nil
		}
		return &s
	}
	integer := func(name string) *int64 {
		col, ok := table.Column(rec, name)
		if !ok {
			return nil
		}
		switch v := table.Value(col, i).(type) {
		case int64:
			return &v
		case int32:
			n := int64(v)
			return &n
		case int16:
			n := int64(v)
			return &n
		case int8:
			n := int64(v)
			return &n
		}
		return nil
	}
	float := func(name string) *float64 {
		col, ok := table.Column(rec, name)
		if !ok {
			return nil
		}
		switch v := table.Value(col, i).(type) {
		case float64:
			return &v
		case float32:
			f := float64(v)
			return &f
		}
		return nil
	}
	return Canonical{
		CustomerID:       text("customer_id"),
		Gender:           text("gender"),
		Partner:          text("partner"),
		Dependents:       text("dependents"),
		PhoneService:     text("phone_service"),
		MultipleLines:    text("multiple_lines"),
		InternetService:  text("internet_service"),
		OnlineSecurity:   text("online_security"),
		OnlineBackup:     text("online_backup"),
		DeviceProtection: text("device_protection"),
		TechSupport:      text("tech_support"),
		StreamingTV:      text("streaming_tv"),
		StreamingMovies:  text("streaming_movies"),
		Contract:         text("contract"),
		PaperlessBilling: text("paperless_billing"),
		PaymentMethod:    text("payment_method"),
		Churn:            text("churn"),
		SeniorCitizen:    integer("senior_citizen"),
		Tenure:           integer("tenure"),
		MonthlyCharges:   float("monthly_charges"),
		TotalCharges:     float("total_charges"),
	}
}
