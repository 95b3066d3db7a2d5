package generation

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/JxWayne890/complyflow-financial/internal/domain"
)

// SuggestedTopicCount is how many ideas one suggestion call asks for
const SuggestedTopicCount = 6

// SuggestTopics asks the text generator for new topic ideas that do not
// repeat any of existing
func (o *Orchestrator) SuggestTopics(ctx context.Context, existing []string) ([]domain.TopicSuggestion, error) {
	res, err := o.text.Generate(ctx, Request{Action: domain.ActionTopics, ExistingTopics: existing})
	if err != nil {
		return nil, asError(err)
	}
	return parseTopics(res.Body, existing)
}

// parseTopics decodes a JSON array reply, fenced or bare. Ideas without a
// topic and ideas matching an existing topic are dropped.
func parseTopics(raw string, existing []string) ([]domain.TopicSuggestion, error) {
	var items []domain.TopicSuggestion
	if err := json.Unmarshal([]byte(unfence(raw)), &items); err != nil {
		return nil, Failf("AI returned malformed topic data. Please try again.")
	}

	seen := make(map[string]bool, len(existing)+len(items))
	for _, t := range existing {
		seen[topicKey(t)] = true
	}
	out := make([]domain.TopicSuggestion, 0, len(items))
	for _, it := range items {
		it.Topic = strings.TrimSpace(it.Topic)
		it.Category = strings.TrimSpace(it.Category)
		it.Audience = strings.TrimSpace(it.Audience)
		k := topicKey(it.Topic)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
		if len(out) == SuggestedTopicCount {
			break
		}
	}
	if len(out) == 0 {
		return nil, Failf("generator returned no new topics")
	}
	return out, nil
}

// unfence strips a surrounding markdown code fence
func unfence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func topicKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
