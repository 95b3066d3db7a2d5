package domain

// LibraryTab groups statuses the way the content library shows them
type LibraryTab string

const (
	TabAll      LibraryTab = "all"
	TabDraft    LibraryTab = "draft"
	TabInReview LibraryTab = "in_review"
	TabApproved LibraryTab = "approved"
)

// Statuses returns the statuses listed under the tab; nil means no filter
func (t LibraryTab) Statuses() []ContentStatus {
	switch t {
	case TabDraft:
		return []ContentStatus{StatusDraft, StatusChangesRequested}
	case TabInReview:
		return []ContentStatus{StatusInReview, StatusSubmitted}
	case TabApproved:
		return []ContentStatus{StatusApproved}
	}
	return nil
}

// ListFilter narrows a content listing
type ListFilter struct {
	OrgID     string
	AdvisorID string
	ClientID  string
	Tab       LibraryTab
	Status    ContentStatus
	Page      int
	Limit     int
}

// StatusCounts backs the library tab badges
type StatusCounts struct {
	All      int64 `json:"all"`
	Draft    int64 `json:"draft"`
	InReview int64 `json:"in_review"`
	Approved int64 `json:"approved"`
}

// Add folds a per-status count into the tab counters
func (c *StatusCounts) Add(status ContentStatus, n int64) {
	c.All += n
	switch status {
	case StatusDraft, StatusChangesRequested:
		c.Draft += n
	case StatusInReview, StatusSubmitted:
		c.InReview += n
	case StatusApproved:
		c.Approved += n
	}
}

// ContentDetail is a request together with its current version
type ContentDetail struct {
	Request *ContentRequest `json:"request"`
	Current *ContentVersion `json:"current_version,omitempty"`
}
