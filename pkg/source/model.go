package source

import "time"

// Customer is a pelanggan row.
type Customer struct {
	Code   string
	Region string
	Status string
}

// Tariff is a goltarif row.
type Tariff struct {
	Code string
	Name string
}

// MeterReading is a brek row: one billed reading per customer and month.
type MeterReading struct {
	CustomerCode string
	Year         int
	Month        int
	TariffCode   string
	Usage        *float64
	AmountDue    *float64
}

// Payment is a trx row: one payment per customer and month.
type Payment struct {
	CustomerCode string
	Year         int
	Month        int
	AmountPaid   *float64
	Penalty      *float64
}

// Disconnection is a pemutusan row.
type Disconnection struct {
	CustomerCode string
	Date         time.Time
	Outcome      *string
}

// Complaint is a pengaduan row.
type Complaint struct {
	CustomerID *string
	Type       *string
	Timestamp  *time.Time
}

// NewConnection is a sbbaru row.
type NewConnection struct {
	RegistrationCode string
	Date             time.Time
	Outcome          *string
	Count            *int64
}
