package testutil

import (
	"context"
	"time"

	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/source"
)

var _ source.Reader = (*FakeSource)(nil)

// FakeSource is an in-memory source.Reader. Windowed reads filter rows by the
// same date each entity's query predicate uses. Entities present in Fail
// return their error.
type FakeSource struct {
	CustomerRows      []source.Customer
	TariffRows        []source.Tariff
	MeterReadingRows  []source.MeterReading
	PaymentRows       []source.Payment
	DisconnectionRows []source.Disconnection
	ComplaintRows     []source.Complaint
	NewConnectionRows []source.NewConnection

	Fail map[source.Entity]error

	// Calls counts reads per entity.
	Calls map[source.Entity]int
}

func (f *FakeSource) called(e source.Entity) error {
	if f.Calls == nil {
		f.Calls = map[source.Entity]int{}
	}

	f.Calls[e]++

	return f.Fail[e]
}

func filter[T any](rows []T, keep func(T) bool) []T {
	var out []T

	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}

	return out
}

func monthDate(year, month int) time.Time {
	return period.Date(year, time.Month(month), 1)
}

func (f *FakeSource) Customers(_ context.Context) ([]source.Customer, error) {
	if err := f.called(source.EntityCustomer); err != nil {
		return nil, err
	}

	return f.CustomerRows, nil
}

func (f *FakeSource) Tariffs(_ context.Context) ([]source.Tariff, error) {
	if err := f.called(source.EntityTariff); err != nil {
		return nil, err
	}

	return f.TariffRows, nil
}

func (f *FakeSource) MeterReadings(_ context.Context, p period.Period) ([]source.MeterReading, error) {
	if err := f.called(source.EntityMeterReading); err != nil {
		return nil, err
	}

	return filter(f.MeterReadingRows, func(r source.MeterReading) bool {
		return p.Includes(monthDate(r.Year, r.Month))
	}), nil
}

func (f *FakeSource) Payments(_ context.Context, p period.Period) ([]source.Payment, error) {
	if err := f.called(source.EntityPayment); err != nil {
		return nil, err
	}

	return filter(f.PaymentRows, func(r source.Payment) bool {
		return p.Includes(monthDate(r.Year, r.Month))
	}), nil
}

func (f *FakeSource) Disconnections(_ context.Context, p period.Period) ([]source.Disconnection, error) {
	if err := f.called(source.EntityDisconnection); err != nil {
		return nil, err
	}

	return filter(f.DisconnectionRows, func(r source.Disconnection) bool { return p.Includes(r.Date) }), nil
}

func (f *FakeSource) Complaints(_ context.Context, p period.Period) ([]source.Complaint, error) {
	if err := f.called(source.EntityComplaint); err != nil {
		return nil, err
	}

	return filter(f.ComplaintRows, func(r source.Complaint) bool {
		return r.Timestamp != nil && p.Includes(*r.Timestamp)
	}), nil
}

func (f *FakeSource) NewConnections(_ context.Context, p period.Period) ([]source.NewConnection, error) {
	if err := f.called(source.EntityNewConnection); err != nil {
		return nil, err
	}

	return filter(f.NewConnectionRows, func(r source.NewConnection) bool { return p.Includes(r.Date) }), nil
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
