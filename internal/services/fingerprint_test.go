package services

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"andamento/internal/core"
	"andamento/internal/report"
)

func TestFingerprint(t *testing.T) {
	a := core.Transaction{ID: "1", AccountID: "acc", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Type: core.Income, Amount: decimal.NewFromInt(5)}
	b := core.Transaction{ID: "2", AccountID: "acc", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Type: core.Expense, Amount: decimal.NewFromInt(3)}

	if fingerprint([]core.Transaction{a, b}) != fingerprint([]core.Transaction{b, a}) {
		t.Error("fingerprint should not depend on order")
	}
	if fingerprint([]core.Transaction{a}) == fingerprint([]core.Transaction{a, a}) {
		t.Error("duplicates must change the fingerprint")
	}
	changed := b
	changed.Amount = decimal.NewFromInt(4)
	if fingerprint([]core.Transaction{a, b}) == fingerprint([]core.Transaction{a, changed}) {
		t.Error("amount change must change the fingerprint")
	}
	if fingerprint(nil) == fingerprint([]core.Transaction{{}}) {
		t.Error("empty set and one zero record must differ")
	}
}

func TestReportKey(t *testing.T) {
	d := civil.Date{Year: 2024, Month: time.January, Day: 10}
	k1 := reportKey("acc", nil, report.Preset7D, d)
	k2 := reportKey("acc", nil, report.Preset7D, d.AddDays(1))
	k3 := reportKey("acc", nil, report.Preset1M, d)
	if k1 == k2 || k1 == k3 {
		t.Fatalf("keys should differ: %s %s %s", k1, k2, k3)
	}
}
