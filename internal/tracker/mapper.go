package tracker

import (
	"fmt"
	"strings"

	"github.com/steveyegge/leadsync/internal/types"
)

// ListMap maps canonical statuses to board list IDs and back.
// Every canonical status must have a list.
type ListMap struct {
	toList   map[types.Status]string
	toStatus map[string]types.Status
}

// NewListMap builds a ListMap from status→list ID pairs. All four canonical
// statuses must be present with non-empty, distinct list IDs, and no other
// key is accepted.
func NewListMap(lists map[types.Status]string) (*ListMap, error) {
	for s := range lists {
		if !s.IsValid() {
			return nil, fmt.Errorf("%q is not a lead status", s)
		}
	}
	m := &ListMap{
		toList:   make(map[types.Status]string, len(lists)),
		toStatus: make(map[string]types.Status, len(lists)),
	}
	for _, s := range types.AllStatuses {
		id := strings.TrimSpace(lists[s])
		if id == "" {
			return nil, fmt.Errorf("no list configured for status %q", s)
		}
		if prev, dup := m.toStatus[id]; dup {
			return nil, fmt.Errorf("list %s is mapped to both %q and %q", id, prev, s)
		}
		m.toList[s] = id
		m.toStatus[id] = s
	}
	return m, nil
}

// StatusForList returns the status a list represents. Unknown lists map to
// StatusNew.
func (m *ListMap) StatusForList(listID string) types.Status {
	if s, ok := m.toStatus[listID]; ok {
		return s
	}
	return types.StatusNew
}

// ListForStatus returns the list ID for a canonical status, falling back to
// the list for StatusNew.
func (m *ListMap) ListForStatus(s types.Status) string {
	if id, ok := m.toList[s]; ok {
		return id
	}
	return m.toList[types.StatusNew]
}

// ListIDs returns the configured list IDs in lifecycle order.
func (m *ListMap) ListIDs() []string {
	ids := make([]string, 0, len(types.AllStatuses))
	for _, s := range types.AllStatuses {
		ids = append(ids, m.toList[s])
	}
	return ids
}

// LeadIDMarker prefixes the machine-readable line of a task body.
const LeadIDMarker = "lead_id: "

// EmptyBodyPlaceholder is the body of a task built from a record with no
// email, origin or external ID.
const EmptyBodyPlaceholder = "No information available"

// FormatTaskBody renders the task body for a lead. The output is compared
// byte for byte against the board to decide whether an update is needed,
// so it must stay deterministic.
func FormatTaskBody(email, origin, leadID string) string {
	var lines []string
	if leadID != "" {
		lines = append(lines, LeadIDMarker+leadID)
		lines = append(lines, "🆔 Lead ID: "+leadID)
	}
	if email != "" {
		lines = append(lines, "📧 Email: "+email)
	}
	if origin != "" {
		lines = append(lines, "📍 Source: "+origin)
	}
	if len(lines) == 0 {
		return EmptyBodyPlaceholder
	}
	return strings.Join(lines, "\n")
}

// HasLeadID reports whether body carries the exact marker line for leadID.
func HasLeadID(body, leadID string) bool {
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimRight(line, "\r") == LeadIDMarker+leadID {
			return true
		}
	}
	return false
}
