// Package security guards the pipeline's input edge: prompt injection
// detection and reversible PII anonymization. Both run before any query
// text reaches retrieval or generation.
package security

import (
	"regexp"
	"strings"
)

// DefaultBlockThreshold is the suspicion score at or above which a
// request is blocked outright.
const DefaultBlockThreshold = 0.7

// Severity buckets for injection alerts.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert is one matched injection pattern.
type Alert struct {
	PatternName string
	MatchedText string
	Severity    string
	Score       float64
}

type injectionPattern struct {
	name     string
	re       *regexp.Regexp
	severity string
	score    float64
}

// injectionPatterns covers instruction override, prompt extraction,
// jailbreaks, code and SQL injection, and boundary manipulation. The
// final suspicion score is the max over matched patterns and heuristics.
var injectionPatterns = []injectionPattern{
	{
		name:     "ignore_instructions",
		re:       regexp.MustCompile(`(?im)(?:ignore|forget|disregard|override)\s+(?:all|previous|above|your)\s+(?:instructions?|rules?|guidelines?)`),
		severity: SeverityCritical,
		score:    0.9,
	},
	{
		name:     "new_instructions",
		re:       regexp.MustCompile(`(?im)(?:new|updated?|real|actual)\s+(?:instructions?|rules?|guidelines?)\s*[:=]`),
		severity: SeverityCritical,
		score:    0.85,
	},
	{
		name:     "role_play",
		re:       regexp.MustCompile(`(?im)(?:you\s+are|act\s+as|pretend\s+to\s+be|roleplay\s+as)\s+(?:a|an|the)\s+(?:different|new|evil|malicious)`),
		severity: SeverityHigh,
		score:    0.8,
	},
	{
		name:     "prompt_extraction",
		re:       regexp.MustCompile(`(?im)(?:show|reveal|display|print|output)\s+(?:your|the|system)\s+(?:prompt|instructions?|rules?)`),
		severity: SeverityHigh,
		score:    0.8,
	},
	{
		name:     "repeat_instructions",
		re:       regexp.MustCompile(`(?im)repeat\s+(?:your|the|all)\s+(?:above|previous)?\s*(?:instructions?|prompt|text)`),
		severity: SeverityHigh,
		score:    0.75,
	},
	{
		name:     "jailbreak_dan",
		re:       regexp.MustCompile(`(?im)\b(?:dan|jailbreak|do\s+anything\s+now)\b`),
		severity: SeverityHigh,
		score:    0.7,
	},
	{
		name:     "developer_mode",
		re:       regexp.MustCompile(`(?im)(?:developer|debug|admin|root)\s+mode\s*(?:enabled?|on|activate)`),
		severity: SeverityHigh,
		score:    0.75,
	},
	{
		name:     "code_execution",
		re:       regexp.MustCompile(`(?im)(?:exec|eval|run|execute)\s*\(|` + "`[^`]+`" + `|os\.system|subprocess`),
		severity: SeverityCritical,
		score:    0.9,
	},
	{
		name:     "sql_injection",
		re:       regexp.MustCompile(`(?im)(?:union\s+select|drop\s+table|delete\s+from|insert\s+into|;\s*--)`),
		severity: SeverityCritical,
		score:    0.85,
	},
	{
		name:     "end_marker",
		re:       regexp.MustCompile(`(?im)(?:</?(?:system|user|assistant)>|` + "```" + `\s*(?:end|exit|quit))`),
		severity: SeverityMedium,
		score:    0.6,
	},
	{
		name:     "output_format",
		re:       regexp.MustCompile(`(?im)(?:respond|reply|answer)\s+(?:only\s+)?(?:with|using)\s*["']?(?:yes|no|true|false)`),
		severity: SeverityLow,
		score:    0.4,
	},
}

var (
	specialCharsRe = regexp.MustCompile(`[<>\[\]{}|\\^~` + "`" + `]`)
	roleMarkerRe   = regexp.MustCompile(`(?i)\b(?:assistant|system|user)\s*:`)
	nestedQuoteRe  = regexp.MustCompile(`["'][^"']*["'][^"']*["']`)
	boundaryTagRe  = regexp.MustCompile(`(?i)</?(?:system|user|assistant)>`)
	fenceMarkerRe  = regexp.MustCompile(`(?i)` + "```" + `\s*(?:end|exit|quit)\s*` + "```")
)

// InjectionDefense scores input text for prompt injection.
type InjectionDefense struct {
	blockThreshold float64
}

// NewInjectionDefense creates a defense with the given block threshold.
// Zero or negative means the default.
func NewInjectionDefense(blockThreshold float64) *InjectionDefense {
	if blockThreshold <= 0 {
		blockThreshold = DefaultBlockThreshold
	}
	return &InjectionDefense{blockThreshold: blockThreshold}
}

// Analyze scores text for injection attempts. The score is the maximum
// over all matched patterns and heuristics, in [0, 1].
func (d *InjectionDefense) Analyze(text string) (float64, []Alert) {
	var alerts []Alert
	var maxScore float64

	for _, p := range injectionPatterns {
		matches := p.re.FindAllString(text, -1)
		for _, m := range matches {
			if len(m) > 100 {
				m = m[:100]
			}
			alerts = append(alerts, Alert{
				PatternName: p.name,
				MatchedText: m,
				Severity:    p.severity,
				Score:       p.score,
			})
		}
		if len(matches) > 0 && p.score > maxScore {
			maxScore = p.score
		}
	}

	if h := heuristicScore(text); h > maxScore {
		maxScore = h
	}
	return maxScore, alerts
}

// heuristicScore catches manipulation the patterns miss: special
// character stuffing, very long inputs, repeated role markers, and
// nested quoting.
func heuristicScore(text string) float64 {
	var score float64

	if len(text) > 0 {
		specials := len(specialCharsRe.FindAllString(text, -1))
		if float64(specials)/float64(len(text)) > 0.1 {
			score = 0.4
		}
	}

	if len(text) > 5000 && score < 0.3 {
		score = 0.3
	}

	if len(roleMarkerRe.FindAllString(text, -1)) > 2 && score < 0.5 {
		score = 0.5
	}

	if len(nestedQuoteRe.FindAllString(text, -1)) > 3 && score < 0.4 {
		score = 0.4
	}

	return score
}

// IsSafe reports whether text scores below the block threshold.
func (d *InjectionDefense) IsSafe(text string) bool {
	score, _ := d.Analyze(text)
	return score < d.blockThreshold
}

// ShouldBlock reports whether the score meets the block threshold.
func (d *InjectionDefense) ShouldBlock(score float64) bool {
	return score >= d.blockThreshold
}

// Sanitize strips boundary markers from text. It may alter legitimate
// content, so it only runs on inputs already flagged as suspicious.
func (d *InjectionDefense) Sanitize(text string) string {
	result := boundaryTagRe.ReplaceAllString(text, "")
	result = fenceMarkerRe.ReplaceAllString(result, "")
	result = strings.ReplaceAll(result, `\n`, " ")
	result = strings.ReplaceAll(result, `\r`, " ")
	return strings.TrimSpace(result)
}
