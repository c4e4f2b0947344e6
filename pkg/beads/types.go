package beads

import "time"

// Bead is one record returned by a bd query. Source is assigned by the
// aggregator from discovery, never trusted from the tool's own output.
type Bead struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	IssueType string     `json:"issue_type"`
	Priority  int        `json:"priority"`
	Assignee  string     `json:"assignee,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Source    string     `json:"source,omitempty"`
}

// LastTouched returns the update timestamp, falling back to creation time.
func (b Bead) LastTouched() time.Time {
	if b.UpdatedAt != nil && !b.UpdatedAt.IsZero() {
		return *b.UpdatedAt
	}
	return b.CreatedAt
}

// ListQuery narrows a per-source bd list invocation. Status and Type map
// directly onto bd flags; only a single status can be pushed down.
type ListQuery struct {
	Status string
	Type   string
	Limit  int
}
