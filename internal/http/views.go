package http

import (
	"encoding/json"
	"net/http"
	"time"

	"andamento/internal/core"
	"andamento/internal/report"
)

type windowView struct {
	Start   string `json:"start,omitempty"`
	End     string `json:"end"`
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Bounded bool   `json:"bounded"`
}

type bucketView struct {
	Day     string `json:"day"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Net     string `json:"net"`
}

type totalsView struct {
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Net     string `json:"net"`
}

type skippedView struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

type reportView struct {
	Account string        `json:"account,omitempty"`
	Preset  string        `json:"preset"`
	Window  windowView    `json:"window"`
	Buckets []bucketView  `json:"buckets"`
	Totals  totalsView    `json:"totals"`
	Skipped []skippedView `json:"skipped"`
}

type presetView struct {
	Key  string `json:"key"`
	Days *int   `json:"days"`
}

type errorView struct {
	Error string `json:"error"`
}

// newReportView renders a report for a charting client. Amounts are
// fixed two-decimal strings so no precision is lost in transit. An ALL
// window has no start.
func newReportView(accountID string, rep report.Report, fill bool) reportView {
	buckets := rep.Buckets
	if fill {
		buckets = report.FillGaps(buckets, rep.Window)
	}

	v := reportView{
		Account: accountID,
		Preset:  rep.Preset.String(),
		Window: windowView{
			End:     rep.Window.End.Format(time.RFC3339Nano),
			To:      rep.Window.To.String(),
			Bounded: rep.Window.Bounded,
		},
		Buckets: make([]bucketView, 0, len(buckets)),
		Totals: totalsView{
			Income:  core.FormatAmount(rep.Totals.Income),
			Expense: core.FormatAmount(rep.Totals.Expense),
			Net:     core.FormatAmount(rep.Totals.Net()),
		},
		Skipped: make([]skippedView, 0, len(rep.Skipped)),
	}
	if rep.Window.Bounded {
		v.Window.Start = rep.Window.Start.Format(time.RFC3339Nano)
		v.Window.From = rep.Window.From.String()
	}

	for _, b := range buckets {
		v.Buckets = append(v.Buckets, bucketView{
			Day:     b.Key(),
			Income:  core.FormatAmount(b.Income),
			Expense: core.FormatAmount(b.Expense),
			Net:     core.FormatAmount(b.Net()),
		})
	}
	for _, m := range rep.Skipped {
		sv := skippedView{Index: m.Index, ID: m.ID}
		if m.Reason != nil {
			sv.Reason = m.Reason.Error()
		}
		v.Skipped = append(v.Skipped, sv)
	}
	return v
}

func presetViews() []presetView {
	presets := report.Presets()
	out := make([]presetView, 0, len(presets))
	for _, p := range presets {
		pv := presetView{Key: p.String()}
		if days, ok := p.Days(); ok {
			pv.Days = &days
		}
		out = append(out, pv)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorView{Error: msg})
}
