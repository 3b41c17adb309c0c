package extract

// CheckResult is the outcome of an extractor's self-check. Warnings never
// make a result invalid.
type CheckResult struct {
	IsValid  bool     `json:"is_valid"`
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
}

func (c *CheckResult) warn(msg string) { c.Warnings = append(c.Warnings, msg) }

func (c *CheckResult) fail(msg string) {
	c.Errors = append(c.Errors, msg)
	c.IsValid = false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
