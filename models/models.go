package models

import "github.com/shopspring/decimal"

func init() {
	// Amounts go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// All returns every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&Branch{},
		&Service{},
		&Customer{},
		&Transaction{},
		&LineItem{},
		&Payment{},
		&Appointment{},
		&Unavailability{},
		&Sequence{},
		&ChangeRecord{},
	}
}
