package warehouse

import "time"

// Customer is a dim_pelanggan row.
type Customer struct {
	ID     int64
	Code   string
	Region string
	Status string
}

// CustomerKey is the natural key of a customer: the code alone repeats across regions.
type CustomerKey struct {
	Code   string
	Region string
}

// Key returns the natural key of c.
func (c Customer) Key() CustomerKey {
	return CustomerKey{Code: c.Code, Region: c.Region}
}

// Tariff is a dim_goltarif row.
type Tariff struct {
	ID   int64
	Code string
	Name string
}

// CalendarDate is a dim_waktu row.
type CalendarDate struct {
	ID    int64
	Date  time.Time
	Day   int
	Month int
	Year  int
}

// NewCalendarDate derives the calendar attributes of d.
func NewCalendarDate(id int64, d time.Time) CalendarDate {
	y, m, day := d.Date()

	return CalendarDate{
		ID:    id,
		Date:  time.Date(y, m, day, 0, 0, 0, 0, time.UTC),
		Day:   day,
		Month: int(m),
		Year:  y,
	}
}

// ComplaintType is a dim_jenispengaduan row.
type ComplaintType struct {
	ID    int64
	Label string
}

// Outcome is a dim_realisasi row.
type Outcome struct {
	ID    int64
	Label string
}

// Transaction is a fact_transaksi row.
type Transaction struct {
	CustomerCode string
	TariffCode   string
	TimeID       int64
	Usage        float64
	AmountDue    float64
	AmountPaid   float64
	Penalty      float64
}

// TransactionKey is the natural key of a transaction fact.
type TransactionKey struct {
	CustomerCode string
	TimeID       int64
}

// Key returns the natural key of t.
func (t Transaction) Key() TransactionKey {
	return TransactionKey{CustomerCode: t.CustomerCode, TimeID: t.TimeID}
}

// Complaint is a fact_pengaduan row.
type Complaint struct {
	CustomerID      string
	ComplaintTypeID int64
	TimeID          int64
}

// ComplaintKey is the natural key of a complaint fact.
type ComplaintKey struct {
	CustomerID      string
	TimeID          int64
	ComplaintTypeID int64
}

// Key returns the natural key of c.
func (c Complaint) Key() ComplaintKey {
	return ComplaintKey{CustomerID: c.CustomerID, TimeID: c.TimeID, ComplaintTypeID: c.ComplaintTypeID}
}

// Disconnection is a fact_pemutusan row. OutcomeID is nil when the outcome
// label is blank or unknown.
type Disconnection struct {
	CustomerCode string
	OutcomeID    *int64
	TimeID       int64
}

// DisconnectionKey is the natural key of a disconnection fact.
type DisconnectionKey struct {
	CustomerCode string
	TimeID       int64
}

// Key returns the natural key of d.
func (d Disconnection) Key() DisconnectionKey {
	return DisconnectionKey{CustomerCode: d.CustomerCode, TimeID: d.TimeID}
}

// NewConnection is a fact_sbbaru row.
type NewConnection struct {
	RegistrationCode string
	Region           string
	OutcomeID        *int64
	TimeID           int64
	Count            int64
}

// NewConnectionKey is the natural key of a new-connection fact.
type NewConnectionKey struct {
	RegistrationCode string
	TimeID           int64
}

// Key returns the natural key of n.
func (n NewConnection) Key() NewConnectionKey {
	return NewConnectionKey{RegistrationCode: n.RegistrationCode, TimeID: n.TimeID}
}

// HistoryEntry is an etl_history row.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Start     time.Time `json:"start_date"`
	End       time.Time `json:"end_date"`
	Status    string    `json:"status"`
}
