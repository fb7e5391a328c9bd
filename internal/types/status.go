package types

import "strings"

// Status is the canonical lead lifecycle state shared by both sides of the sync.
type Status string

// Canonical statuses.
const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusLost      Status = "lost"
)

// AllStatuses lists the canonical statuses in lifecycle order.
var AllStatuses = []Status{StatusNew, StatusContacted, StatusQualified, StatusLost}

// IsValid checks if the status value is a canonical status.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusLost:
		return true
	}
	return false
}

// Upper returns the form written back to the record store ("QUALIFIED").
func (s Status) Upper() string {
	return strings.ToUpper(string(s))
}

var statusSynonyms = map[string]Status{
	"new":     StatusNew,
	"todo":    StatusNew,
	"pending": StatusNew,

	"contacted":   StatusContacted,
	"in_progress": StatusContacted,
	"inprogress":  StatusContacted,
	"working":     StatusContacted,
	"active":      StatusContacted,
	"reach_out":   StatusContacted,

	"qualified": StatusQualified,
	"done":      StatusQualified,
	"complete":  StatusQualified,
	"completed": StatusQualified,
	"finished":  StatusQualified,
	"won":       StatusQualified,
	"success":   StatusQualified,

	"lost":        StatusLost,
	"rejected":    StatusLost,
	"cancelled":   StatusLost,
	"closed_lost": StatusLost,
	"dead":        StatusLost,
}

// NormalizeStatus maps a free-form status string onto a canonical status.
// Matching is case-insensitive and treats spaces and hyphens as underscores.
// Empty or unrecognized input yields StatusNew.
func NormalizeStatus(raw string) Status {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return StatusNew
	}
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if s, ok := statusSynonyms[key]; ok {
		return s
	}
	return StatusNew
}
