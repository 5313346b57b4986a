package domain

import "strings"

type Account struct {
	ID      string  `bson:"-"`
	Name    string  `bson:"name"`
	Email   string  `bson:"email"`
	Phone   string  `bson:"phone,omitempty"`
	Address Address `bson:"address"`
}

type Address struct {
	Street  string `bson:"street" json:"street"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state" json:"state"`
	ZipCode string `bson:"zip_code" json:"zipCode"`
	Country string `bson:"country" json:"country"`
}

func (a Address) IsZero() bool {
	return a == Address{}
}

// Validate requires every field, as an order cannot ship to a partial address.
func (a Address) Validate() error {
	fields := []struct{ name, value string }{
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zipCode", a.ZipCode},
		{"country", a.Country},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return Errorf(ErrInvalidArgument, "shipping address %s is required", f.name)
		}
	}
	return nil
}
