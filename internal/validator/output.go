package validator

import (
	"regexp"
	"strings"
)

// thinkRegexp matches reasoning blocks some local models emit before the
// answer.
var thinkRegexp = regexp.MustCompile(`(?s)<think>.*?</think>`)

// NoAnswer replaces an empty final answer.
const NoAnswer = "The model returned an empty answer."

type OutputValidator struct{}

func NewOutputValidator() *OutputValidator {
	return &OutputValidator{}
}

// Clean strips reasoning blocks and surrounding whitespace from a final
// answer.
func (v *OutputValidator) Clean(answer string) string {
	answer = thinkRegexp.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return NoAnswer
	}
	return answer
}
