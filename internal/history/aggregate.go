package history

import (
	"fmt"
	"sort"
	"time"

	"github.com/NordCoder/Uptime/internal/domain/health"
	"github.com/NordCoder/Uptime/internal/domain/run"
)

// DefaultBarBuckets is the number of elements in a website's status bar.
const DefaultBarBuckets = 100

type Bar struct {
	Buckets []Bucket
	First   *time.Time
	Last    *time.Time
}

type WebsiteStatus struct {
	Website string
	LastOK  *time.Time
	// OKRatio is OKRuns/TotalRuns as a percentage with two decimals.
	// Runs, not probes, are counted: a long healthy run weighs as much as a
	// single failed probe.
	OKRatio   string
	TotalRuns int
	OKRuns    int
	Bar       Bar
}

// Aggregate builds one status per website, sorted by name. Websites listed in
// websites but without runs are included with empty statistics; runs for
// websites not listed are included as well.
func Aggregate(websites []string, runs []run.Run, buckets int) []WebsiteStatus {
	byWebsite := make(map[string][]run.Run, len(websites))
	for _, w := range websites {
		byWebsite[w] = nil
	}
	for _, r := range runs {
		byWebsite[r.Website] = append(byWebsite[r.Website], r)
	}

	names := make([]string, 0, len(byWebsite))
	for w := range byWebsite {
		names = append(names, w)
	}
	sort.Strings(names)

	out := make([]WebsiteStatus, 0, len(names))
	for _, w := range names {
		out = append(out, Summarize(w, byWebsite[w], buckets))
	}
	return out
}

// Summarize computes the status of a single website from its runs. The
// caller's slice is left untouched.
func Summarize(website string, in []run.Run, buckets int) WebsiteStatus {
	runs := make([]run.Run, len(in))
	copy(runs, in)
	sort.Slice(runs, func(i, j int) bool { return runs[i].RangeStart.Before(runs[j].RangeStart) })

	st := WebsiteStatus{
		Website:   website,
		TotalRuns: len(runs),
		Bar:       Bar{Buckets: Downsample(runs, buckets)},
	}
	for _, r := range runs {
		if r.State != health.OK {
			continue
		}
		st.OKRuns++
		if st.LastOK == nil || r.RangeEnd.After(*st.LastOK) {
			end := r.RangeEnd
			st.LastOK = &end
		}
	}
	st.OKRatio = FormatRatio(st.OKRuns, st.TotalRuns)

	if len(runs) > 0 {
		first, last := runs[0].RangeStart, runs[len(runs)-1].RangeEnd
		st.Bar.First, st.Bar.Last = &first, &last
	}
	return st
}

// FormatRatio renders ok/total as "12.34%". A website without runs reports
// "0.00%" so the column keeps a uniform shape.
func FormatRatio(ok, total int) string {
	if total <= 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(ok)/float64(total)*100)
}
