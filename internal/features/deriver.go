package features

import (
	"churn/internal/schema"
)

// Deriver computes Engineered rows. Encodings, flags, ratios and buckets are
// looked up in the contract; a value missing from a lookup table encodes to
// null.
type Deriver struct {
	enc      map[string]schema.Encoding
	flags    map[string]schema.Flag
	ratios   map[string]schema.Ratio
	bucket   schema.Bucket
	services []string
	addons   []string
}

// NewDeriver indexes the contract once.
func NewDeriver(c *schema.Contract) *Deriver {
	d := &Deriver{
		enc:      map[string]schema.Encoding{},
		flags:    map[string]schema.Flag{},
		ratios:   map[string]schema.Ratio{},
		services: c.CountColumns(schema.CountServices),
		addons:   c.CountColumns(schema.CountAddons),
	}
	for _, e := range c.Encodings() {
		d.enc[e.Feature] = e
	}
	for _, g := range c.GoldColumns(true) {
		switch g.Kind {
		case schema.GoldFlag:
			f, _ := c.Flag(g.Ref)
			d.flags[g.Ref] = f
		case schema.GoldRatio:
			r, _ := c.Ratio(g.Ref)
			d.ratios[g.Ref] = r
		case schema.GoldBucket:
			d.bucket, _ = c.Bucket(g.Ref)
		}
	}
	return d
}

// Derive maps one canonical row to its engineered row. Every feature derived
// solely from null inputs is null.
func (d *Deriver) Derive(c Canonical) Engineered {
	e := Engineered{
		Churn:          d.encode("churn", &c),
		CustomerID:     c.CustomerID,
		SeniorCitizen:  c.SeniorCitizen,
		Tenure:         c.Tenure,
		MonthlyCharges: c.MonthlyCharges,
		TotalCharges:   c.TotalCharges,

		GenderID:           d.encode("gender_id", &c),
		PartnerID:          d.encode("partner_id", &c),
		DependentsID:       d.encode("dependents_id", &c),
		PhoneServiceID:     d.encode("phone_service_id", &c),
		MultipleLinesID:    d.encode("multiple_lines_id", &c),
		InternetServiceID:  d.encode("internet_service_id", &c),
		OnlineSecurityID:   d.encode("online_security_id", &c),
		OnlineBackupID:     d.encode("online_backup_id", &c),
		DeviceProtectionID: d.encode("device_protection_id", &c),
		TechSupportID:      d.encode("tech_support_id", &c),
		StreamingTVID:      d.encode("streaming_tv_id", &c),
		StreamingMoviesID:  d.encode("streaming_movies_id", &c),
		ContractTermMonths: d.encode("contract_term_months", &c),
		PaperlessBillingID: d.encode("paperless_billing_id", &c),
		PaymentMethodID:    d.encode("payment_method_id", &c),

		NumServices:      d.count(d.services, &c),
		NumAddonServices: d.count(d.addons, &c),

		SecurityBundle: d.flag("security_bundle", &c),
		TechBundle:     d.flag("tech_bundle", &c),

		ChargesPerMonth: d.ratio("charges_per_month", &c),
		ChargesRatio:    d.ratio("charges_ratio", &c),

		TenureBucketID: d.bucketOf(&c),

		ShortTenure:        d.flag("short_tenure", &c),
		LongTenure:         d.flag("long_tenure", &c),
		IsMonthToMonth:     d.flag("is_month_to_month", &c),
		HasFiber:           d.flag("has_fiber", &c),
		NoInternet:         d.flag("no_internet", &c),
		HighMonthlyCharges: d.flag("high_monthly_charges", &c),
	}
	if len(d.addons) > 0 {
		e.AddonServiceRatio = float64(e.NumAddonServices) / float64(len(d.addons))
	}
	return e
}

func (d *Deriver) encode(feature string, c *Canonical) *int64 {
	e, ok := d.enc[feature]
	if !ok {
		return nil
	}
	v := c.Text(e.Column)
	if v == nil {
		return nil
	}
	code, ok := e.Lookup(*v)
	if !ok {
		return nil
	}
	return &code
}

func (d *Deriver) count(cols []string, c *Canonical) int64 {
	var n int64
	for _, col := range cols {
		if v := c.Text(col); v != nil && *v == "yes" {
			n++
		}
	}
	return n
}

// flag evaluates f with three-valued logic. For OpEquals any matching column
// yields 1, otherwise any null column yields null.
func (d *Deriver) flag(name string, c *Canonical) *int64 {
	f, ok := d.flags[name]
	if !ok {
		return nil
	}
	var one, zero int64 = 1, 0
	switch f.Op {
	case schema.OpEquals:
		sawNull := false
		for _, col := range f.Columns {
			v := c.Text(col)
			if v == nil {
				sawNull = true
				continue
			}
			if *v == f.Value {
				return &one
			}
		}
		if sawNull {
			return nil
		}
		return &zero
	case schema.OpLess, schema.OpGreater:
		v := c.Number(f.Columns[0])
		if v == nil {
			return nil
		}
		hit := *v < f.Threshold
		if f.Op == schema.OpGreater {
			hit = *v > f.Threshold
		}
		if hit {
			return &one
		}
		return &zero
	}
	return nil
}

func (d *Deriver) ratio(name string, c *Canonical) *float64 {
	r, ok := d.ratios[name]
	if !ok {
		return nil
	}
	num, den := c.Number(r.Numerator), c.Number(r.Denominator)
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	q := *num / *den
	return &q
}

func (d *Deriver) bucketOf(c *Canonical) *int64 {
	v := c.Number(d.bucket.Column)
	if v == nil || len(d.bucket.Bounds) == 0 {
		return nil
	}
	b := d.bucket.Index(int64(*v))
	return &b
}
