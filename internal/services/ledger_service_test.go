package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dailyledger/internal/core"
	"dailyledger/internal/ledger"
	"dailyledger/internal/log"
	"dailyledger/internal/records"
	"dailyledger/internal/sheets/memory"
)

type published struct {
	date    core.Date
	version int64
	clear   bool
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) PublishRecordSync(_ context.Context, date core.Date, version int64) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{date: date, version: version})
	return nil
}

func (f *fakePublisher) PublishClear(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{clear: true})
	return nil
}

type fixedVersions int64

func (v fixedVersions) RecordVersion(context.Context, core.Date) (int64, error) {
	return int64(v), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newService(t *testing.T, opts ...Option) *LedgerService {
	t.Helper()
	clock := func() time.Time { return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC) }
	store, err := ledger.Open(context.Background(), memory.New(),
		ledger.WithClock(clock), ledger.WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return NewLedgerService(store, append([]Option{WithLogger(log.Discard())}, opts...)...)
}

func validInput(date string) core.EntryInput {
	return core.EntryInput{
		Date:            date,
		StartingBalance: "10000",
		BikeRepairs:     "500",
		Fuel:            "1500",
		Airtime:         "200",
		EndOfDayBalance: "6000",
		Payout:          "10000",
		Orders:          "10",
	}
}

func TestSubmitEntrySavesAndPublishes(t *testing.T) {
	pub := &fakePublisher{}
	svc := newService(t, WithPublisher(pub, fixedVersions(3)))

	sub, err := svc.SubmitEntry(context.Background(), validInput("2025-01-15"))
	if err != nil {
		t.Fatalf("SubmitEntry: %v", err)
	}
	if got := sub.Record.Revenue.String(); got != "6500" {
		t.Fatalf("revenue = %s, want 6500", got)
	}
	if got := sub.Record.AverageOrderValue.StringFixed(2); got != "650.00" {
		t.Fatalf("aov = %s, want 650.00", got)
	}
	if svc.Store().Len() != 1 {
		t.Fatalf("store has %d records, want 1", svc.Store().Len())
	}
	if len(pub.msgs) != 1 || pub.msgs[0].version != 3 || pub.msgs[0].date.String() != "2025-01-15" {
		t.Fatalf("published %+v", pub.msgs)
	}
}

func TestSubmitEntryRejectsBadInput(t *testing.T) {
	pub := &fakePublisher{}
	svc := newService(t, WithPublisher(pub, nil))

	in := validInput("2025-01-15")
	in.Fuel = "lots"
	in.Orders = "-1"
	_, err := svc.SubmitEntry(context.Background(), in)

	var fe core.FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if _, ok := fe[core.FieldFuel]; !ok {
		t.Fatalf("missing fuel error: %v", fe)
	}
	if _, ok := fe[core.FieldOrders]; !ok {
		t.Fatalf("missing orders error: %v", fe)
	}
	if svc.Store().Len() != 0 || len(pub.msgs) != 0 {
		t.Fatal("rejected input must not be saved or published")
	}
}

func TestSubmitEntryPublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newService(t, WithPublisher(pub, nil))

	if _, err := svc.SubmitEntry(context.Background(), validInput("2025-01-15")); err != nil {
		t.Fatalf("SubmitEntry: %v", err)
	}
	if svc.Store().Len() != 1 {
		t.Fatal("record should be saved despite publish failure")
	}
}

func TestSubmitEntryReturnsWarnings(t *testing.T) {
	svc := newService(t)
	in := validInput("2025-01-15")
	in.BikeRepairs = "20000"

	sub, err := svc.SubmitEntry(context.Background(), in)
	if err != nil {
		t.Fatalf("SubmitEntry: %v", err)
	}
	if len(sub.Warnings) == 0 {
		t.Fatal("expected warnings for repairs above the starting balance")
	}
}

func TestPreviewDoesNotSave(t *testing.T) {
	svc := newService(t)
	sub, err := svc.Preview(validInput("2025-01-15"))
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if sub.Record.ClosingBalance.String() != "16000" {
		t.Fatalf("closing = %s, want 16000", sub.Record.ClosingBalance)
	}
	if svc.Store().Len() != 0 {
		t.Fatal("preview must not save")
	}
}

func TestImportMergesAndExportRoundTrips(t *testing.T) {
	pub := &fakePublisher{}
	svc := newService(t, WithPublisher(pub, nil))
	ctx := context.Background()

	if _, err := svc.SubmitEntry(ctx, validInput("2025-01-14")); err != nil {
		t.Fatalf("SubmitEntry: %v", err)
	}

	csv := strings.Join(records.Columns[:8], ",") + "\n" +
		"2025-01-14,5000,0,0,0,1000,0,4\n" +
		"2025-01-15,8000,100,900,100,4000,1500,10\n"
	res, err := svc.Import(ctx, strings.NewReader(csv), records.FormatCSV)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Added != 1 || res.Replaced != 1 {
		t.Fatalf("merge result = %+v, want 1 added 1 replaced", res)
	}
	if len(pub.msgs) != 3 {
		t.Fatalf("published %d messages, want 3", len(pub.msgs))
	}
	got, err := svc.Store().Get(core.NewDate(2025, 1, 14))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.StartingBalance.String() != "5000" {
		t.Fatalf("imported record should win, starting balance = %s", got.StartingBalance)
	}

	var buf bytes.Buffer
	n, err := svc.Export(ctx, &buf, records.FormatJSON, Selection{Period: core.PeriodAll})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 2 {
		t.Fatalf("exported %d records, want 2", n)
	}
	back, err := records.ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if len(back) != 2 || !back[0].Date.Before(back[1].Date) {
		t.Fatalf("export should be oldest first: %+v", back)
	}
}

func TestImportRejectsMalformed(t *testing.T) {
	svc := newService(t)
	_, err := svc.Import(context.Background(), strings.NewReader("Date,Fuel\n2025-01-01,3\n"), records.FormatCSV)
	if !errors.Is(err, records.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if svc.Store().Len() != 0 {
		t.Fatal("nothing should be merged from a malformed import")
	}
}

func TestSelectByRange(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for _, d := range []string{"2025-01-01", "2025-01-10", "2025-01-15"} {
		if _, err := svc.SubmitEntry(ctx, validInput(d)); err != nil {
			t.Fatalf("SubmitEntry %s: %v", d, err)
		}
	}

	tests := []struct {
		name string
		sel  Selection
		want int
	}{
		{"all", Selection{}, 3},
		{"today", Selection{Period: core.PeriodDay}, 1},
		{"range", Selection{From: core.NewDate(2025, 1, 2), To: core.NewDate(2025, 1, 10)}, 1},
		{"open end", Selection{From: core.NewDate(2025, 1, 10)}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(svc.Select(tt.sel)); got != tt.want {
				t.Fatalf("got %d records, want %d", got, tt.want)
			}
		})
	}
}

func TestReportAndAggregate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for _, d := range []string{"2024-12-31", "2025-01-14", "2025-01-15"} {
		if _, err := svc.SubmitEntry(ctx, validInput(d)); err != nil {
			t.Fatalf("SubmitEntry %s: %v", d, err)
		}
	}

	rep := svc.Report(core.PeriodMonth)
	if rep.Summary.Days != 2 || rep.Summary.TotalOrders != 20 {
		t.Fatalf("month summary = %+v", rep.Summary)
	}
	if rep.Records[0].Date.String() != "2025-01-15" {
		t.Fatalf("report should list newest first, got %s", rep.Records[0].Date)
	}

	months, err := svc.Aggregate("month")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(months) != 2 || months[0].Key != "2024-12" {
		t.Fatalf("months = %+v", months)
	}
	if _, err := svc.Aggregate("year"); err == nil {
		t.Fatal("expected error for unknown grouping")
	}
}

func TestClearPublishes(t *testing.T) {
	pub := &fakePublisher{}
	svc := newService(t, WithPublisher(pub, nil))
	ctx := context.Background()
	if _, err := svc.SubmitEntry(ctx, validInput("2025-01-15")); err != nil {
		t.Fatalf("SubmitEntry: %v", err)
	}
	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if svc.Store().Len() != 0 {
		t.Fatal("store should be empty")
	}
	if last := pub.msgs[len(pub.msgs)-1]; !last.clear {
		t.Fatalf("last message = %+v, want clear", last)
	}
}

func TestCloseJoinsErrors(t *testing.T) {
	calls := 0
	svc := newService(t,
		WithCloser(closerFunc(func() error { calls++; return errors.New("first") })),
		WithCloser(closerFunc(func() error { calls++; return nil })),
	)
	err := svc.Close()
	if err == nil || !strings.Contains(err.Error(), "first") {
		t.Fatalf("Close error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("closed %d resources, want 2", calls)
	}
}

func TestSubmitEntryEmptyDateUsesStoreClock(t *testing.T) {
	svc := newService(t)

	sub, err := svc.SubmitEntry(context.Background(), validInput(""))
	if err != nil {
		t.Fatalf("SubmitEntry: %v", err)
	}
	if got := sub.Record.Key(); got != "2025-01-15" {
		t.Fatalf("date = %s, want 2025-01-15", got)
	}
	if got := svc.Store().FilterByPeriod(core.PeriodDay); len(got) != 1 {
		t.Fatalf("day report has %d records, want 1", len(got))
	}
}
