package warehouse

// Typed row batches. Each converts to values in its table's column order.
type (
	Customers      []Customer
	Tariffs        []Tariff
	CalendarDates  []CalendarDate
	ComplaintTypes []ComplaintType
	Outcomes       []Outcome
	Transactions   []Transaction
	Complaints     []Complaint
	Disconnections []Disconnection
	NewConnections []NewConnection
)

var (
	_ Rows = Customers(nil)
	_ Rows = Tariffs(nil)
	_ Rows = CalendarDates(nil)
	_ Rows = ComplaintTypes(nil)
	_ Rows = Outcomes(nil)
	_ Rows = Transactions(nil)
	_ Rows = Complaints(nil)
	_ Rows = Disconnections(nil)
	_ Rows = NewConnections(nil)
)

func (r Customers) Table() Table { return CustomerTable }
func (r Customers) Len() int     { return len(r) }
func (r Customers) Values() [][]any {
	return mapValues(r, func(c Customer) []any { return []any{c.ID, c.Code, c.Region, c.Status} })
}

func (r Tariffs) Table() Table { return TariffTable }
func (r Tariffs) Len() int     { return len(r) }
func (r Tariffs) Values() [][]any {
	return mapValues(r, func(t Tariff) []any { return []any{t.ID, t.Code, t.Name} })
}

func (r CalendarDates) Table() Table { return CalendarTable }
func (r CalendarDates) Len() int     { return len(r) }
func (r CalendarDates) Values() [][]any {
	return mapValues(r, func(d CalendarDate) []any { return []any{d.ID, d.Date, d.Day, d.Month, d.Year} })
}

func (r ComplaintTypes) Table() Table { return ComplaintTypeTable }
func (r ComplaintTypes) Len() int     { return len(r) }
func (r ComplaintTypes) Values() [][]any {
	return mapValues(r, func(c ComplaintType) []any { return []any{c.ID, c.Label} })
}

func (r Outcomes) Table() Table { return OutcomeTable }
func (r Outcomes) Len() int     { return len(r) }
func (r Outcomes) Values() [][]any {
	return mapValues(r, func(o Outcome) []any { return []any{o.ID, o.Label} })
}

func (r Transactions) Table() Table { return TransactionTable }
func (r Transactions) Len() int     { return len(r) }
func (r Transactions) Values() [][]any {
	return mapValues(r, func(t Transaction) []any {
		return []any{t.CustomerCode, t.TariffCode, t.TimeID, t.Usage, t.AmountDue, t.AmountPaid, t.Penalty}
	})
}

func (r Complaints) Table() Table { return ComplaintTable }
func (r Complaints) Len() int     { return len(r) }
func (r Complaints) Values() [][]any {
	return mapValues(r, func(c Complaint) []any { return []any{c.CustomerID, c.ComplaintTypeID, c.TimeID} })
}

func (r Disconnections) Table() Table { return DisconnectionTable }
func (r Disconnections) Len() int     { return len(r) }
func (r Disconnections) Values() [][]any {
	return mapValues(r, func(d Disconnection) []any { return []any{d.CustomerCode, d.OutcomeID, d.TimeID} })
}

func (r NewConnections) Table() Table { return NewConnectionTable }
func (r NewConnections) Len() int     { return len(r) }
func (r NewConnections) Values() [][]any {
	return mapValues(r, func(n NewConnection) []any {
		return []any{n.RegistrationCode, n.Region, n.OutcomeID, n.TimeID, n.Count}
	})
}

func mapValues[T any](rows []T, fn func(T) []any) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = fn(r)
	}

	return out
}
