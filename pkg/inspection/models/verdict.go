package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Verdict is the binary outcome of a part inspection.
type Verdict string

const (
	VerdictDefective Verdict = "DEFECTIVE"
	VerdictPassed    Verdict = "PASSED"
)

// verdictAliases maps every label we have seen from scorers, older
// front-ends and imported data onto the canonical enum.
var verdictAliases = map[string]Verdict{
	"defective":   VerdictDefective,
	"defect":      VerdictDefective,
	"cacat":       VerdictDefective,
	"passed":      VerdictPassed,
	"pass":        VerdictPassed,
	"ok":          VerdictPassed,
	"lolos":       VerdictPassed,
	"tidak cacat": VerdictPassed,
}

// ParseVerdict accepts a label case-insensitively.
func ParseVerdict(raw string) (Verdict, error) {
	key := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	if v, ok := verdictAliases[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown verdict %q", raw)
}

func (v Verdict) String() string { return string(v) }

func (v Verdict) Valid() bool {
	return v == VerdictDefective || v == VerdictPassed
}

// Value stores the canonical label.
func (v Verdict) Value() (driver.Value, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("invalid verdict %q", string(v))
	}
	return string(v), nil
}

// Scan reads a stored label, tolerating legacy casing.
func (v *Verdict) Scan(src any) error {
	var raw string
	switch s := src.(type) {
	case string:
		raw = s
	case []byte:
		raw = string(s)
	default:
		return fmt.Errorf("cannot scan %T into Verdict", src)
	}
	parsed, err := ParseVerdict(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
