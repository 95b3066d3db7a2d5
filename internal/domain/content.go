package domain

import "time"

// ContentStatus is the lifecycle state of a content request
type ContentStatus string

const (
	StatusDraft            ContentStatus = "draft"
	StatusSubmitted        ContentStatus = "submitted" // legacy alias of in_review, never written
	StatusInReview         ContentStatus = "in_review"
	StatusChangesRequested ContentStatus = "changes_requested"
	StatusApproved         ContentStatus = "approved"
	StatusScheduled        ContentStatus = "scheduled"
	StatusPosted           ContentStatus = "posted"
	StatusRejected         ContentStatus = "rejected"
)

// Normalize folds the legacy submitted state into in_review
func (s ContentStatus) Normalize() ContentStatus {
	if s == StatusSubmitted {
		return StatusInReview
	}
	return s
}

// Editable reports whether advisors may change fields or versions in this state
func (s ContentStatus) Editable() bool {
	switch s.Normalize() {
	case StatusDraft, StatusChangesRequested:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible
func (s ContentStatus) Terminal() bool {
	return s == StatusPosted || s == StatusRejected
}

// ContentType is the kind of marketing asset being produced
type ContentType string

const (
	ContentTypeBlog        ContentType = "blog"
	ContentTypeLinkedIn    ContentType = "linkedin"
	ContentTypeFacebook    ContentType = "facebook"
	ContentTypeAd          ContentType = "ad"
	ContentTypeVideoScript ContentType = "video_script"
)

// Valid reports whether t is a known content type
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeBlog, ContentTypeLinkedIn, ContentTypeFacebook, ContentTypeAd, ContentTypeVideoScript:
		return true
	}
	return false
}

// Visual reports whether the type is produced as a visual/script asset
func (t ContentType) Visual() bool {
	return t == ContentTypeAd || t == ContentTypeVideoScript
}

// ContentRequest is one piece of content moving through review
type ContentRequest struct {
	ID               string        `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	OrgID            string        `gorm:"column:org_id;type:varchar(36);index;not null" json:"org_id"`
	AdvisorID        string        `gorm:"column:advisor_id;type:varchar(36);index;not null" json:"advisor_id"`
	ClientID         *string       `gorm:"column:client_id;type:varchar(36)" json:"client_id,omitempty"`
	TopicText        string        `gorm:"column:topic_text;type:varchar(500);not null" json:"topic_text"`
	ContentType      ContentType   `gorm:"column:content_type;type:varchar(20);not null" json:"content_type"`
	Instructions     string        `gorm:"column:instructions;type:text" json:"instructions"`
	Status           ContentStatus `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	CurrentVersionID *string       `gorm:"column:current_version_id;type:varchar(36)" json:"current_version_id,omitempty"`
	RevisionCycle    int           `gorm:"column:revision_cycle;not null;default:0" json:"revision_cycle"`
	ScheduledAt      *time.Time    `gorm:"column:scheduled_at;index" json:"scheduled_at,omitempty"`
	PostedAt         *time.Time    `gorm:"column:posted_at" json:"posted_at,omitempty"`
	CreatedAt        time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"column:updated_at" json:"updated_at"`
}

func (ContentRequest) TableName() string { return "content_requests" }

// Generator records who produced a version
type Generator string

const (
	GeneratorAI    Generator = "ai"
	GeneratorHuman Generator = "human"
)

// ContentVersion is an immutable snapshot of a request's document
type ContentVersion struct {
	ID              string    `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	RequestID       string    `gorm:"column:request_id;type:varchar(36);not null;uniqueIndex:idx_content_versions_request_number,priority:1" json:"request_id"`
	VersionNumber   int       `gorm:"column:version_number;not null;uniqueIndex:idx_content_versions_request_number,priority:2" json:"version_number"`
	GeneratedBy     Generator `gorm:"column:generated_by;type:varchar(10);not null" json:"generated_by"`
	Title           string    `gorm:"column:title;type:varchar(500)" json:"title"`
	Body            string    `gorm:"column:body;type:text" json:"body"`
	Disclaimers     string    `gorm:"column:disclaimers;type:text" json:"disclaimers,omitempty"`
	ComplianceNotes string    `gorm:"column:compliance_notes;type:text" json:"compliance_notes,omitempty"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ContentVersion) TableName() string { return "content_versions" }

// ReviewDecision is a compliance outcome
type ReviewDecision string

const (
	DecisionApproved         ReviewDecision = "approved"
	DecisionChangesRequested ReviewDecision = "changes_requested"
	DecisionRejected         ReviewDecision = "rejected"
)

// RequiresNotes reports whether the decision must be justified
func (d ReviewDecision) RequiresNotes() bool {
	return d == DecisionChangesRequested || d == DecisionRejected
}

// ComplianceReview is one reviewer decision event
type ComplianceReview struct {
	ID         string         `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	RequestID  string         `gorm:"column:request_id;type:varchar(36);not null;index:idx_compliance_reviews_request_number,priority:1" json:"request_id"`
	Number     int            `gorm:"column:review_number;not null;default:0;index:idx_compliance_reviews_request_number,priority:2" json:"review_number"`
	VersionID  *string        `gorm:"column:version_id;type:varchar(36)" json:"version_id,omitempty"`
	ReviewerID string         `gorm:"column:reviewer_id;type:varchar(36);not null" json:"reviewer_id"`
	Decision   ReviewDecision `gorm:"column:decision;type:varchar(20);not null" json:"decision"`
	Notes      string         `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt  time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (ComplianceReview) TableName() string { return "compliance_reviews" }
