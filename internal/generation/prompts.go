package generation

import (
	"fmt"
	"strings"

	"github.com/JxWayne890/complyflow-financial/internal/domain"
)

const advisorStyle = `You are a senior wealth advisor at an independent wealth management firm.
Tone: Professional, educational, authoritative, yet accessible. NOT salesy.
Formatting:
- Use clear, bold headers.
- DO NOT use bullet points with dashes/hyphens. Use cohesive paragraphs or numbered lists if absolutely necessary.
- Write in a flowing, human narrative.
- No "AI-isms" (e.g., avoid "In conclusion", "Delve", "In the dynamic world of", "Tapestry").
- Never use promissory language or guarantees of performance.
- Focus on wealth preservation, planning, and long-term investing.
Start with the title on its own first line.`

const posterStyle = `You are a creative director for a high-end financial firm.
Task: Describe a "Poster Style" visual asset or video script.
Style: Clean, bold font, high contrast, professional financial aesthetic.
Output: Provide a detailed visual description or script. Do not output markdown code blocks unless it's a script.`

const topicStrategist = `You are the Chief Compliance Officer and content strategist for a Registered Investment Advisor.
Generate NEW blog and LinkedIn topic ideas that comply with SEC marketing rules.

Permissible content: educational posts, balanced market commentary, exit planning, estate and succession planning, general tax planning, investment process explanations, anonymous illustrative wealth transfer cases, alternative and energy investment education, business valuation and sales.

Language rules:
- Use "may", "could", "might". Never "will", "guaranteed", "certain".
- Educate, do not promote products.
- No superlatives, predictions, testimonials or unsubstantiated performance claims.
- No specific investment recommendations to the general public.

Audiences (one per topic): General Public, Accredited Investors, Qualified Purchasers.
Categories (one per topic): Market Updates, Personal Finance, Alternative Investments, Tax Strategy, Estate Planning, Financial Planning, Energy Investments, About the Firm, Lifestyle.

Return ONLY a JSON array of objects with "category", "topic" and "audience". No markdown, no explanation.`

var rewriteInstructions = map[domain.RewriteMode]string{
	domain.RewriteModeRewrite: "Rephrase and rewrite the following passage while keeping the same meaning, tone, and style.",
	domain.RewriteModeShorten: "Make the following passage significantly more concise without losing key information.",
	domain.RewriteModeExpand:  "Expand the following passage with more depth and educational detail.",
}

func lengthInstruction(l LengthClass) string {
	min, max := l.WordBand()
	switch l {
	case LengthShort:
		return fmt.Sprintf("Length: Concise, around %d-%d words.", min, max)
	case LengthLong:
		return fmt.Sprintf("Length: Comprehensive deep-dive, around %d-%d words.", min, max)
	}
	return fmt.Sprintf("Length: Balanced, around %d-%d words.", min, max)
}

// buildPrompt returns the system and user messages for req
func buildPrompt(kind Kind, req Request) (system, user string) {
	switch req.Action {
	case domain.ActionExtend:
		return advisorStyle, fmt.Sprintf(`You are rewriting and expanding an existing draft.
Current Draft:
"""
%s
"""

Task:
1. Keep the core message and tone of the original draft.
2. Significantly expand the content (make it at least 50%% longer).
3. Add more depth, examples, and educational value to key points.
4. Maintain the same style (authoritative, educational, no salesy language).
5. Ensure the new length aligns with: %s

Return the FULL expanded article.`, req.CurrentContent, lengthInstruction(req.LengthClass))

	case domain.ActionTopics:
		var b strings.Builder
		b.WriteString("Here are the existing topics (do NOT duplicate any of these):\n")
		for _, t := range req.ExistingTopics {
			fmt.Fprintf(&b, "- %s\n", t)
		}
		fmt.Fprintf(&b, "\nNow generate %d brand new, compliant topic ideas as a JSON array.", SuggestedTopicCount)
		return topicStrategist, b.String()

	case domain.ActionRewrite:
		instruction := rewriteInstructions[req.RewriteMode]
		if req.RewriteMode == domain.RewriteModeFixCompliance {
			instruction = fmt.Sprintf("Rewrite the following passage to address this compliance concern: %q. Ensure it is fully SEC/FINRA compliant. Do not use promissory language or guarantees.", req.ComplianceNote)
		}
		if instruction == "" {
			instruction = rewriteInstructions[domain.RewriteModeRewrite]
		}
		return advisorStyle, fmt.Sprintf(`%s
Passage to rewrite:
"""
%s
"""
IMPORTANT: Return ONLY the rewritten passage.`, instruction, req.CurrentContent)
	}

	if kind == KindImage || req.ContentType.Visual() {
		return posterStyle, fmt.Sprintf("Create a visual description or video script for: %s.\n\nContext: %s", req.Topic, req.Instructions)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s about %s.\n\nLength Requirement: %s", req.ContentType, req.Topic, lengthInstruction(req.LengthClass))
	if strings.TrimSpace(req.Instructions) != "" {
		fmt.Fprintf(&b, "\n\nSpecific Instructions: %s", req.Instructions)
	}
	return advisorStyle, b.String()
}
