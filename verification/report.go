package verification

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"nftlend/native/lending"
	"nftlend/native/wadray"
)

// CheckResult is the outcome of one vector or live target.
type CheckResult struct {
	Name     string
	Kind     Kind
	Market   string
	Passed   bool
	Expected string
	Actual   string
	Error    string
}

// Report summarises a verification run.
type Report struct {
	ID       string
	Network  string
	Source   string
	Started  time.Time
	Finished time.Time
	Checks   []CheckResult
}

// Passed reports whether every check passed.
func (r *Report) Passed() bool {
	return r.Failures() == 0
}

// Failures counts failing checks.
func (r *Report) Failures() int {
	failures := 0
	for _, c := range r.Checks {
		if !c.Passed {
			failures++
		}
	}
	return failures
}

// errorCodes maps the names accepted by Vector.ExpectError to engine sentinels.
var errorCodes = map[string]error{
	"invalid_config":     lending.ErrInvalidConfig,
	"invalid_time_range": lending.ErrInvalidTimeRange,
	"index_overflow":     lending.ErrIndexOverflow,
	"overflow":           wadray.ErrOverflow,
	"arithmetic":         wadray.ErrArithmetic,
}

// ErrorCode returns the stable name of an engine error, or "" when err is not
// an engine sentinel.
func ErrorCode(err error) string {
	for _, code := range []string{"invalid_config", "invalid_time_range", "index_overflow", "overflow", "arithmetic"} {
		if errors.Is(err, errorCodes[code]) {
			return code
		}
	}
	return ""
}

type field struct {
	name  string
	value string
}

func formatFields(fields []field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%s", f.name, f.value))
	}
	return strings.Join(parts, " ")
}
