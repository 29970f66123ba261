package schema

import "github.com/apache/arrow-go/v18/arrow"

var (
	yesNo        = []string{"yes", "no"}
	addonService = []string{"yes", "no", "no internet service"}
)

// Telco returns the contract for the telco customer snapshot. Every call
// returns a fresh value; callers share it by pointer.
func Telco() *Contract {
	i8 := arrow.PrimitiveTypes.Int8
	i16 := arrow.PrimitiveTypes.Int16
	i64 := arrow.PrimitiveTypes.Int64
	f64 := arrow.PrimitiveTypes.Float64
	str := arrow.BinaryTypes.String

	c := &Contract{
		name:           "telco_customer",
		key:            "customer_id",
		label:          "churn",
		whitespace:     " \t\n\v\f\r",
		integerPattern: `-?[0-9]+`,
		floatPattern:   `-?([0-9]+(\.[0-9]+)?|\.[0-9]+)([eE][-+]?[0-9]+)?`,
		fields: []Field{
			{Name: "customer_id", Source: "customerID", Type: TypeText, Required: true},
			{Name: "gender", Source: "gender", Type: TypeCategory, Enum: []string{"male", "female"}},
			{Name: "partner", Source: "Partner", Type: TypeCategory, Enum: yesNo},
			{Name: "dependents", Source: "Dependents", Type: TypeCategory, Enum: yesNo},
			{Name: "phone_service", Source: "PhoneService", Type: TypeCategory, Enum: yesNo},
			{Name: "multiple_lines", Source: "MultipleLines", Type: TypeCategory, Enum: []string{"no phone service", "yes", "no"}},
			{Name: "internet_service", Source: "InternetService", Type: TypeCategory, Enum: []string{"dsl", "fiber optic", "no"}},
			{Name: "online_security", Source: "OnlineSecurity", Type: TypeCategory, Enum: addonService},
			{Name: "online_backup", Source: "OnlineBackup", Type: TypeCategory, Enum: addonService},
			{Name: "device_protection", Source: "DeviceProtection", Type: TypeCategory, Enum: addonService},
			{Name: "tech_support", Source: "TechSupport", Type: TypeCategory, Enum: addonService},
			{Name: "streaming_tv", Source: "StreamingTV", Type: TypeCategory, Enum: addonService},
			{Name: "streaming_movies", Source: "StreamingMovies", Type: TypeCategory, Enum: addonService},
			{Name: "contract", Source: "Contract", Type: TypeCategory, Enum: []string{"month-to-month", "one year", "two year"}},
			{Name: "paperless_billing", Source: "PaperlessBilling", Type: TypeCategory, Enum: yesNo},
			{Name: "payment_method", Source: "PaymentMethod", Type: TypeCategory, Enum: []string{
				"electronic check",
				"mailed check",
				"bank transfer (automatic)",
				"credit card (automatic)",
			}},
			{Name: "churn", Source: "Churn", Type: TypeCategory, Label: true, Enum: yesNo},
			{Name: "senior_citizen", Source: "SeniorCitizen", Type: TypeInteger, Min: 0, Max: 1},
			{Name: "tenure", Source: "tenure", Type: TypeInteger, Min: 0, Max: 72},
			{Name: "monthly_charges", Source: "MonthlyCharges", Type: TypeFloat, Min: 18.25, Max: 118.75},
			{Name: "total_charges", Source: "TotalCharges", Type: TypeFloat, Min: 18.8, Max: 8684.8},
		},
		dedupOrder: []string{"total_charges", "tenure"},
		encodings: []Encoding{
			binary("churn", "churn"),
			{Feature: "gender_id", Column: "gender", Type: i8, Codes: []Code{{"female", 0}, {"male", 1}}},
			binary("partner_id", "partner"),
			binary("dependents_id", "dependents"),
			binary("phone_service_id", "phone_service"),
			{Feature: "multiple_lines_id", Column: "multiple_lines", Type: i8, Codes: []Code{{"no phone service", 0}, {"no", 1}, {"yes", 2}}},
			{Feature: "internet_service_id", Column: "internet_service", Type: i8, Codes: []Code{{"no", 0}, {"dsl", 1}, {"fiber optic", 2}}},
			addon("online_security_id", "online_security"),
			addon("online_backup_id", "online_backup"),
			addon("device_protection_id", "device_protection"),
			addon("tech_support_id", "tech_support"),
			addon("streaming_tv_id", "streaming_tv"),
			addon("streaming_movies_id", "streaming_movies"),
			{Feature: "contract_term_months", Column: "contract", Type: i16, Codes: []Code{{"month-to-month", 1}, {"one year", 12}, {"two year", 24}}},
			binary("paperless_billing_id", "paperless_billing"),
			{Feature: "payment_method_id", Column: "payment_method", Type: i8, Codes: []Code{
				{"electronic check", 0},
				{"mailed check", 1},
				{"bank transfer (automatic)", 2},
				{"credit card (automatic)", 3},
			}},
		},
		flags: []Flag{
			{Name: "security_bundle", Columns: []string{"online_security", "device_protection"}, Op: OpEquals, Value: "yes"},
			{Name: "tech_bundle", Columns: []string{"tech_support"}, Op: OpEquals, Value: "yes"},
			{Name: "short_tenure", Columns: []string{"tenure"}, Op: OpLess, Threshold: 6},
			{Name: "long_tenure", Columns: []string{"tenure"}, Op: OpGreater, Threshold: 24},
			{Name: "is_month_to_month", Columns: []string{"contract"}, Op: OpEquals, Value: "month-to-month"},
			{Name: "has_fiber", Columns: []string{"internet_service"}, Op: OpEquals, Value: "fiber optic"},
			{Name: "no_internet", Columns: []string{"internet_service"}, Op: OpEquals, Value: "no"},
			{Name: "high_monthly_charges", Columns: []string{"monthly_charges"}, Op: OpGreater, Threshold: 80},
		},
		ratios: []Ratio{
			{Name: "charges_per_month", Numerator: "total_charges", Denominator: "tenure"},
			{Name: "charges_ratio", Numerator: "total_charges", Denominator: "monthly_charges"},
		},
		buckets: []Bucket{
			{Name: "tenure_bucket_id", Column: "tenure", Bounds: []int64{6, 12, 24, 48}},
		},
		services: []string{
			"phone_service", "multiple_lines",
			"online_security", "online_backup", "device_protection",
			"tech_support", "streaming_tv", "streaming_movies",
		},
		addons: []string{
			"online_security", "online_backup", "device_protection",
			"tech_support", "streaming_tv", "streaming_movies",
		},
	}

	c.gold = []GoldColumn{
		{Name: "churn", Kind: GoldEncoded, Ref: "churn", Type: i8},
		{Name: "customer_id", Kind: GoldPassthrough, Ref: "customer_id", Type: str},
		{Name: "senior_citizen", Kind: GoldPassthrough, Ref: "senior_citizen", Type: i64},
		{Name: "tenure", Kind: GoldPassthrough, Ref: "tenure", Type: i64},
		{Name: "monthly_charges", Kind: GoldPassthrough, Ref: "monthly_charges", Type: f64},
		{Name: "total_charges", Kind: GoldPassthrough, Ref: "total_charges", Type: f64},
	}
	for _, e := range c.encodings[1:] {
		c.gold = append(c.gold, GoldColumn{Name: e.Feature, Kind: GoldEncoded, Ref: e.Feature, Type: e.Type})
	}
	c.gold = append(c.gold,
		GoldColumn{Name: "num_services", Kind: GoldCount, Ref: CountServices, Type: i8},
		GoldColumn{Name: "num_addon_services", Kind: GoldCount, Ref: CountAddons, Type: i8},
		GoldColumn{Name: "security_bundle", Kind: GoldFlag, Ref: "security_bundle", Type: i8},
		GoldColumn{Name: "tech_bundle", Kind: GoldFlag, Ref: "tech_bundle", Type: i8},
		GoldColumn{Name: "charges_per_month", Kind: GoldRatio, Ref: "charges_per_month", Type: f64},
		GoldColumn{Name: "charges_ratio", Kind: GoldRatio, Ref: "charges_ratio", Type: f64},
		GoldColumn{Name: "addon_service_ratio", Kind: GoldShare, Ref: CountAddons, Type: f64},
		GoldColumn{Name: "tenure_bucket_id", Kind: GoldBucket, Ref: "tenure_bucket_id", Type: i8},
		GoldColumn{Name: "short_tenure", Kind: GoldFlag, Ref: "short_tenure", Type: i8},
		GoldColumn{Name: "long_tenure", Kind: GoldFlag, Ref: "long_tenure", Type: i8},
		GoldColumn{Name: "is_month_to_month", Kind: GoldFlag, Ref: "is_month_to_month", Type: i8},
		GoldColumn{Name: "has_fiber", Kind: GoldFlag, Ref: "has_fiber", Type: i8},
		GoldColumn{Name: "no_internet", Kind: GoldFlag, Ref: "no_internet", Type: i8},
		GoldColumn{Name: "high_monthly_charges", Kind: GoldFlag, Ref: "high_monthly_charges", Type: i8},
	)
	return c
}

func binary(feature, column string) Encoding {
	return Encoding{Feature: feature, Column: column, Type: arrow.PrimitiveTypes.Int8, Codes: []Code{{"no", 0}, {"yes", 1}}}
}

func addon(feature, column string) Encoding {
	return Encoding{Feature: feature, Column: column, Type: arrow.PrimitiveTypes.Int8, Codes: []Code{{"no internet service", 0}, {"no", 1}, {"yes", 2}}}
}
