package features

// Engineered is one gold row. Integer codes and flags are held as int64 and
// narrowed to the gold column type when written to arrow.
type Engineered struct {
	Churn          *int64
	CustomerID     *string
	SeniorCitizen  *int64
	Tenure         *int64
	MonthlyCharges *float64
	TotalCharges   *float64

	GenderID           *int64
	PartnerID          *int64
	DependentsID       *int64
	PhoneServiceID     *int64
	MultipleLinesID    *int64
	InternetServiceID  *int64
	OnlineSecurityID   *int64
	OnlineBackupID     *int64
	DeviceProtectionID *int64
	TechSupportID      *int64
	StreamingTVID      *int64
	StreamingMoviesID  *int64
	ContractTermMonths *int64
	PaperlessBillingID *int64
	PaymentMethodID    *int64

	NumServices      int64
	NumAddonServices int64

	SecurityBundle *int64
	TechBundle     *int64

	ChargesPerMonth   *float64
	ChargesRatio      *float64
	AddonServiceRatio float64

	TenureBucketID *int64

	ShortTenure        *int64
	LongTenure         *int64
	IsMonthToMonth     *int64
	HasFiber           *int64
	NoInternet         *int64
	HighMonthlyCharges *int64
}

// Field returns the gold column called name boxed as nil, string, int64 or
// float64. ok is false for unknown names.
func (e *Engineered) Field(name string) (v any, ok bool) {
	switch name {
	case "churn":
		return boxInt(e.Churn), true
	case "customer_id":
		if e.CustomerID == nil {
			return nil, true
		}
		return *e.CustomerID, true
	case "senior_citizen":
		return boxInt(e.SeniorCitizen), true
	case "tenure":
		return boxInt(e.Tenure), true
	case "monthly_charges":
		return boxFloat(e.MonthlyCharges), true
	case "total_charges":
		return boxFloat(e.TotalCharges), true
	case "gender_id":
		return boxInt(e.GenderID), true
	case "partner_id":
		return boxInt(e.PartnerID), true
	case "dependents_id":
		return boxInt(e.DependentsID), true
	case "phone_service_id":
		return boxInt(e.PhoneServiceID), true
	case "multiple_lines_id":
		return boxInt(e.MultipleLinesID), true
	case "internet_service_id":
		return boxInt(e.InternetServiceID), true
	case "online_security_id":
		return boxInt(e.OnlineSecurityID), true
	case "online_backup_id":
		return boxInt(e.OnlineBackupID), true
	case "device_protection_id":
		return boxInt(e.DeviceProtectionID), true
	case "tech_support_id":
		return boxInt(e.TechSupportID), true
	case "streaming_tv_id":
		return boxInt(e.StreamingTVID), true
	case "streaming_movies_id":
		return boxInt(e.StreamingMoviesID), true
	case "contract_term_months":
		return boxInt(e.ContractTermMonths), true
	case "paperless_billing_id":
		return boxInt(e.PaperlessBillingID), true
	case "payment_method_id":
		return boxInt(e.PaymentMethodID), true
	case "num_services":
		return e.NumServices, true
	case "num_addon_services":
		return e.NumAddonServices, true
	case "security_bundle":
		return boxInt(e.SecurityBundle), true
	case "tech_bundle":
		return boxInt(e.TechBundle), true
	case "charges_per_month":
		return boxFloat(e.ChargesPerMonth), true
	case "charges_ratio":
		return boxFloat(e.ChargesRatio), true
	case "addon_service_ratio":
		return e.AddonServiceRatio, true
	case "tenure_bucket_id":
		return boxInt(e.TenureBucketID), true
	case "short_tenure":
		return boxInt(e.ShortTenure), true
	case "long_tenure":
		return boxInt(e.LongTenure), true
	case "is_month_to_month":
		return boxInt(e.IsMonthToMonth), true
	case "has_fiber":
		return boxInt(e.HasFiber), true
	case "no_internet":
		return boxInt(e.NoInternet), true
	case "high_monthly_charges":
		return boxInt(e.HighMonthlyCharges), true
	}
	return nil, false
}

func boxInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func boxFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
