package redact

import "regexp"

// Scrubber masks common personally identifying patterns before text
// reaches the prompt. Raw text never leaves the segment index, so this
// only guards the outbound inference boundary.
type Scrubber struct{}

func New() *Scrubber { return &Scrubber{} }

var (
	reEmail = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	// long digit runs (cards, account numbers) before phones, so phone
	// matching does not split them
	reNumber = regexp.MustCompile(`\b\d{12,19}\b`)
	rePhone  = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
)

func (s *Scrubber) Redact(text string) string {
	out := reEmail.ReplaceAllString(text, "[redacted-email]")
	out = reNumber.ReplaceAllString(out, "[redacted-number]")
	out = rePhone.ReplaceAllString(out, "[redacted-phone]")
	return out
}
