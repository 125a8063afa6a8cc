package complaints

import (
	"fmt"

	"github.com/dcms-nepal/dcms/internal/domain"
)

// Stats counts complaints by status.
type Stats struct {
	Total      int
	Pending    int
	InProgress int
	Resolved   int
	Rejected   int
}

// Summarize counts list by status. Unknown statuses count toward Total only.
func Summarize(list []domain.Complaint) Stats {
	stats := Stats{Total: len(list)}
	for _, complaint := range list {
		switch complaint.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusInProgress:
			stats.InProgress++
		case domain.StatusResolved:
			stats.Resolved++
		case domain.StatusRejected:
			stats.Rejected++
		}
	}
	return stats
}

// FilterByStatus keeps complaints in status, preserving order. A nil status
// keeps everything. The result never aliases list.
func FilterByStatus(list []domain.Complaint, status *domain.Status) []domain.Complaint {
	out := make([]domain.Complaint, 0, len(list))
	for _, complaint := range list {
		if status == nil || complaint.Status == *status {
			out = append(out, complaint)
		}
	}
	return out
}

// String renders the counts for log output.
func (s Stats) String() string {
	return fmt.Sprintf("total=%d pending=%d in_progress=%d resolved=%d rejected=%d",
		s.Total, s.Pending, s.InProgress, s.Resolved, s.Rejected)
}
