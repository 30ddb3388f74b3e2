package security

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// PII types the detector recognizes.
const (
	PIIEmail       = "email"
	PIIPhone       = "phone"
	PIISSN         = "ssn"
	PIICreditCard  = "credit_card"
	PIIIPAddress   = "ip_address"
	PIIDateOfBirth = "date_of_birth"
)

// PIIMatch is one detected piece of PII.
type PIIMatch struct {
	Type  string
	Value string
	Start int
	End   int
}

type piiPattern struct {
	name string
	re   *regexp.Regexp
}

var piiPatterns = []piiPattern{
	{PIIEmail, regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{PIISSN, regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`)},
	{PIICreditCard, regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`)},
	{PIIPhone, regexp.MustCompile(`\b(?:\+?1[-.\s]?)?(?:\(?[0-9]{3}\)?[-.\s]?)?[0-9]{3}[-.\s]?[0-9]{4}\b`)},
	{PIIIPAddress, regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{PIIDateOfBirth, regexp.MustCompile(`\b(?:0?[1-9]|1[0-2])[/\-](?:0?[1-9]|[12]\d|3[01])[/\-](?:19|20)\d{2}\b`)},
}

// PIIDetector finds and tokenizes PII with reversible tokens, so PII
// never reaches retrieval or generation but the final response can be
// restored for the customer.
type PIIDetector struct {
	mu         sync.Mutex
	tokenMap   map[string]string // token -> original value
	reverseMap map[string]string // original value -> token
}

// NewPIIDetector creates a detector with empty token maps.
func NewPIIDetector() *PIIDetector {
	return &PIIDetector{
		tokenMap:   make(map[string]string),
		reverseMap: make(map[string]string),
	}
}

// Detect returns all PII matches in text, ordered by position.
// Overlapping matches keep the earlier (then longer) one; SSN and card
// patterns run before the looser phone pattern so digits aren't double
// claimed.
func (d *PIIDetector) Detect(text string) []PIIMatch {
	var all []PIIMatch
	for _, p := range piiPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			all = append(all, PIIMatch{
				Type:  p.name,
				Value: text[loc[0]:loc[1]],
				Start: loc[0],
				End:   loc[1],
			})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Start != all[j].Start {
			return all[i].Start < all[j].Start
		}
		return all[i].End > all[j].End
	})

	var matches []PIIMatch
	lastEnd := 0
	for _, m := range all {
		if m.Start < lastEnd {
			continue
		}
		matches = append(matches, m)
		lastEnd = m.End
	}
	return matches
}

// Anonymize replaces PII with reversible tokens like [EMAIL_1a2b3c4d].
// The same value always gets the same token within a detector's
// lifetime. Returns the anonymized text and the tokens used in it.
func (d *PIIDetector) Anonymize(text string) (string, map[string]string) {
	matches := d.Detect(text)
	if len(matches) == 0 {
		return text, map[string]string{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var b strings.Builder
	used := make(map[string]string, len(matches))
	pos := 0
	for _, m := range matches {
		token, ok := d.reverseMap[m.Value]
		if !ok {
			token = newToken(m.Type)
			d.tokenMap[token] = m.Value
			d.reverseMap[m.Value] = token
		}
		used[token] = m.Value

		b.WriteString(text[pos:m.Start])
		b.WriteString(token)
		pos = m.End
	}
	b.WriteString(text[pos:])

	return b.String(), used
}

// Deanonymize restores original values. The provided token map takes
// precedence over the detector's internal map.
func (d *PIIDetector) Deanonymize(text string, tokenMap map[string]string) string {
	d.mu.Lock()
	combined := make(map[string]string, len(d.tokenMap)+len(tokenMap))
	for t, v := range d.tokenMap {
		combined[t] = v
	}
	d.mu.Unlock()
	for t, v := range tokenMap {
		combined[t] = v
	}

	result := text
	for token, original := range combined {
		result = strings.ReplaceAll(result, token, original)
	}
	return result
}

// HasPII reports whether text contains any detectable PII.
func (d *PIIDetector) HasPII(text string) bool {
	return len(d.Detect(text)) > 0
}

// Summary counts detected PII by type.
func (d *PIIDetector) Summary(text string) map[string]int {
	summary := make(map[string]int)
	for _, m := range d.Detect(text) {
		summary[m.Type]++
	}
	return summary
}

// ClearMappings drops all stored token mappings.
func (d *PIIDetector) ClearMappings() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokenMap = make(map[string]string)
	d.reverseMap = make(map[string]string)
}

func newToken(piiType string) string {
	id := uuid.New()
	return fmt.Sprintf("[%s_%s]", strings.ToUpper(piiType), hex.EncodeToString(id[:])[:8])
}
