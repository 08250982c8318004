package cli

import (
	"os"
	"time"

	"invoicer/internal/domain"
	"invoicer/internal/report"
)

// writeReport renders the results of a command line run with the same
// report writers the server uses for a session.
func writeReport(path string, format domain.ReportFormat, providerName string, results []domain.ProcessingResult) error {
	now := time.Now()
	sess := &domain.Session{
		ID:         "cli",
		Status:     domain.SessionStatusCompleted,
		Total:      len(results),
		Processed:  len(results),
		Results:    results,
		Provider:   providerName,
		CreatedAt:  now,
		FinishedAt: &now,
	}
	for _, r := range results {
		if r.Success {
			sess.Successful++
		} else {
			sess.Failed++
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.Write(out, format, sess); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
