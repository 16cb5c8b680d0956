package models

// PlanConfig represents a subscription plan configuration. Plan management is
// external; the catalog ships with the binary.
type PlanConfig struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Amount      float64  `json:"amount"`
	Currency    string   `json:"currency"`
	Interval    string   `json:"interval"` // monthly, yearly
	Features    []string `json:"features"`
}

var availablePlans = map[string]PlanConfig{
	"basic": {
		ID:          "basic",
		Name:        "Basic Plan",
		Description: "Essential features for individuals",
		Amount:      9.99,
		Currency:    "USD",
		Interval:    "monthly",
		Features: []string{
			"Single active subscription",
			"Email support",
		},
	},
	"premium": {
		ID:          "premium",
		Name:        "Premium Plan",
		Description: "Advanced features for power users",
		Amount:      29.99,
		Currency:    "USD",
		Interval:    "monthly",
		Features: []string{
			"Priority support",
			"Usage analytics",
			"API access",
		},
	},
	"enterprise": {
		ID:          "enterprise",
		Name:        "Enterprise Plan",
		Description: "Complete solution for organizations",
		Amount:      99.99,
		Currency:    "USD",
		Interval:    "monthly",
		Features: []string{
			"Unlimited seats",
			"24/7 phone support",
			"Dedicated account manager",
		},
	},
}

// PlanByID looks up a plan in the static catalog.
func PlanByID(id string) (PlanConfig, bool) {
	plan, ok := availablePlans[id]
	return plan, ok
}

// AvailablePlans returns a copy of the catalog to prevent external mutation.
func AvailablePlans() map[string]PlanConfig {
	result := make(map[string]PlanConfig, len(availablePlans))
	for k, v := range availablePlans {
		result[k] = v
	}
	return result
}
