package attempt

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prepstack/testcenter-backend/internal/model"
)

// ResultPresenter renders a scored attempt. It holds no state beyond whether
// the panel is open; the result itself is immutable backend output.
type ResultPresenter struct {
	open   bool
	result *model.AttemptResult
}

// NewResultPresenter creates a closed presenter.
func NewResultPresenter() *ResultPresenter {
	return &ResultPresenter{}
}

// Open shows a result.
func (p *ResultPresenter) Open(result *model.AttemptResult) {
	p.result = result
	p.open = true
}

// Close hides the panel.
func (p *ResultPresenter) Close() {
	p.open = false
}

// IsOpen reports whether the panel is showing.
func (p *ResultPresenter) IsOpen() bool {
	return p.open
}

// Render writes the score breakdown to w. A closed presenter writes nothing.
func (p *ResultPresenter) Render(w io.Writer) {
	if !p.open || p.result == nil {
		return
	}
	r := p.result

	verdict := "FAILED"
	if r.Passed {
		verdict = "PASSED"
	}

	fmt.Fprintln(w, strings.Repeat("─", 40))
	fmt.Fprintf(w, "  Attempt %d: %s\n", r.AttemptNumber, verdict)
	fmt.Fprintln(w, strings.Repeat("─", 40))
	fmt.Fprintf(w, "  Score       %.2f / %.2f (%.2f%%)\n", r.MarksObtained, r.TotalMarks, r.Percentage)
	fmt.Fprintf(w, "  Correct     %d\n", r.CorrectCount)
	fmt.Fprintf(w, "  Wrong       %d\n", r.WrongCount)
	fmt.Fprintf(w, "  Unanswered  %d\n", r.UnansweredCount)
	fmt.Fprintf(w, "  Time taken  %s\n", (time.Duration(r.TimeTakenSeconds) * time.Second).String())
	fmt.Fprintf(w, "  Reason      %s\n", r.SubmitReason)
	fmt.Fprintln(w, strings.Repeat("─", 40))
}
