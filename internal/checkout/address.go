package checkout

import "strings"

// DefaultCountry is preselected on new checkouts.
const DefaultCountry = "US"

// ShippingAddress is where an order is delivered. Apartment is optional.
type ShippingAddress struct {
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Email     string `json:"email" validate:"max=254"`
	Phone     string `json:"phone" validate:"max=32"`
	Address   string `json:"address" validate:"max=200"`
	Apartment string `json:"apartment,omitempty" validate:"max=100"`
	City      string `json:"city" validate:"max=100"`
	State     string `json:"state" validate:"max=100"`
	ZipCode   string `json:"zipCode" validate:"max=20"`
	Country   string `json:"country" validate:"max=2"`
}

func (a ShippingAddress) required() []struct{ name, value string } {
	return []struct{ name, value string }{
		{"firstName", a.FirstName},
		{"lastName", a.LastName},
		{"email", a.Email},
		{"phone", a.Phone},
		{"address", a.Address},
		{"city", a.City},
		{"state", a.State},
		{"zipCode", a.ZipCode},
	}
}

// IsComplete reports whether every required field is non-blank.
func IsComplete(a ShippingAddress) bool {
	return len(MissingFields(a)) == 0
}

// MissingFields lists the json names of required fields that are blank.
func MissingFields(a ShippingAddress) []string {
	var missing []string
	for _, f := range a.required() {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

func withDefaults(a ShippingAddress) ShippingAddress {
	if strings.TrimSpace(a.Country) == "" {
		a.Country = DefaultCountry
	}
	return a
}
