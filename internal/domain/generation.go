package domain

// RewriteMode is the transformation applied to a selected span
type RewriteMode string

const (
	RewriteModeRewrite       RewriteMode = "rewrite"
	RewriteModeShorten       RewriteMode = "shorten"
	RewriteModeExpand        RewriteMode = "expand"
	RewriteModeFixCompliance RewriteMode = "fix_compliance"
)

// Valid reports whether m is one of the closed set of modes
func (m RewriteMode) Valid() bool {
	switch m {
	case RewriteModeRewrite, RewriteModeShorten, RewriteModeExpand, RewriteModeFixCompliance:
		return true
	}
	return false
}

// NeedsNote reports whether the mode requires a compliance note
func (m RewriteMode) NeedsNote() bool { return m == RewriteModeFixCompliance }

// GenerationAction is what the generator is asked to do
type GenerationAction string

const (
	ActionGenerate GenerationAction = "generate"
	ActionExtend   GenerationAction = "extend"
	ActionRewrite  GenerationAction = "rewrite"
	ActionTopics   GenerationAction = "topics"
)

// TopicSuggestion is one AI proposed topic idea
type TopicSuggestion struct {
	Category string `json:"category"`
	Topic    string `json:"topic"`
	Audience string `json:"audience"`
}
