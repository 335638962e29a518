package services

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
	"github.com/zatekoja/caremarket/backend/internal/domain/repositories"
)

// ImportReport is the summary printed after a run, or on demand without one
type ImportReport struct {
	Run          *entities.ImportRunSnapshot `json:"run,omitempty"`
	TotalManaged int64                       `json:"total_managed"`
	ByProvince   []repositories.GroupCount   `json:"by_province"`
	ByKind       []repositories.GroupCount   `json:"by_kind"`
	GeneratedAt  time.Time                   `json:"generated_at"`
}

// ImportReporter builds reports from run counters and the facility store
type ImportReporter struct {
	store repositories.FacilityStore
}

// NewImportReporter creates a reporter reading from store
func NewImportReporter(store repositories.FacilityStore) *ImportReporter {
	return &ImportReporter{store: store}
}

// Build queries the store for directory totals. run may be nil.
func (r *ImportReporter) Build(ctx context.Context, run *entities.ImportRunSnapshot) (*ImportReport, error) {
	total, err := r.store.CountManaged(ctx)
	if err != nil {
		return nil, fmt.Errorf("count managed facilities: %w", err)
	}
	byProvince, err := r.store.CountByProvince(ctx)
	if err != nil {
		return nil, fmt.Errorf("count facilities by province: %w", err)
	}
	byKind, err := r.store.CountByKind(ctx)
	if err != nil {
		return nil, fmt.Errorf("count facilities by kind: %w", err)
	}

	return &ImportReport{
		Run:          run,
		TotalManaged: total,
		ByProvince:   byProvince,
		ByKind:       byKind,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}

// Render writes the report as aligned plain text
func (r *ImportReport) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if run := r.Run; run != nil {
		status := "completed"
		if run.Cancelled {
			status = "cancelled"
		}
		fmt.Fprintf(tw, "Facility import %s\t%s\n", run.RunID, status)
		fmt.Fprintf(tw, "Duration\t%s\n", run.Duration().Round(time.Second))
		fmt.Fprintf(tw, "Segments\t%d/%d\n", run.SegmentsDone, run.SegmentsTotal)
		fmt.Fprintf(tw, "Found\t%d\n", run.Found)
		fmt.Fprintf(tw, "Imported\t%d\n", run.Imported)
		fmt.Fprintf(tw, "Updated\t%d\n", run.Updated)
		fmt.Fprintf(tw, "Skipped\t%d\n", run.Skipped)
		fmt.Fprintf(tw, "Errored\t%d\n", run.Errored)
		if len(run.FailedSegments) > 0 {
			fmt.Fprintf(tw, "\nFailed segments\t%d\n", len(run.FailedSegments))
			for _, f := range run.FailedSegments {
				fmt.Fprintf(tw, "  %s\t%s\n", f.Segment, f.Error)
			}
		}
		fmt.Fprintln(tw)
	}

	fmt.Fprintf(tw, "Managed facilities\t%d\n", r.TotalManaged)

	fmt.Fprintln(tw, "\nBy province")
	for _, g := range r.ByProvince {
		fmt.Fprintf(tw, "  %s\t%d\n", labelOrUnknown(g.Key), g.Count)
	}

	fmt.Fprintln(tw, "\nBy kind")
	for _, g := range r.ByKind {
		fmt.Fprintf(tw, "  %s\t%d\n", labelOrUnknown(g.Key), g.Count)
	}

	return tw.Flush()
}

func labelOrUnknown(s string) string {
	if s == "" {
		return "(unknown)"
	}
	return s
}
