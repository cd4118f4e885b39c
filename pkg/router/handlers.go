package router

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Local answers.
const (
	HelpText = "I can help you find podcast episodes from Behind the Tech and Decoder. " +
		"Try asking about specific topics like artificial intelligence, Microsoft, technology companies, " +
		"or ask me what podcasts are available."

	MsgDivideByZero       = "I cannot divide by zero."
	MsgUnknownCalculation = "I couldn't understand that calculation. Please try again."

	timeLayout = "03:04 PM"
	dateLayout = "Monday, January 02, 2006"
)

// spokenOperators rewrites spelled-out operators into symbols.
var spokenOperators = []struct {
	pattern *regexp.Regexp
	symbol  string
}{
	{regexp.MustCompile(`\bmultiplied\s+by\b`), "*"},
	{regexp.MustCompile(`\bdivided\s+by\b`), "/"},
	{regexp.MustCompile(`\btimes\b`), "*"},
	{regexp.MustCompile(`\bplus\b`), "+"},
	{regexp.MustCompile(`\bminus\b`), "-"},
}

// HandleDateTime answers with the time, the date, or both depending on which
// of "time" and "date" the text mentions.
func HandleDateTime(text string, now time.Time) string {
	lower := strings.ToLower(text)
	wantsTime := strings.Contains(lower, "time")
	wantsDate := strings.Contains(lower, "date")

	switch {
	case wantsTime && !wantsDate:
		return "The current time is " + now.Format(timeLayout)
	case wantsDate && !wantsTime:
		return "Today is " + now.Format(dateLayout)
	default:
		return "Today is " + now.Format(dateLayout) + " and the time is " + now.Format(timeLayout)
	}
}

// HandleCalculation evaluates the first "<number> <operator> <number>" in text.
// Later expressions are ignored.
func HandleCalculation(text string) string {
	expr := strings.ToLower(text)
	for _, op := range spokenOperators {
		expr = op.pattern.ReplaceAllString(expr, " "+op.symbol+" ")
	}

	m := expressionPattern.FindStringSubmatch(expr)
	if m == nil {
		return MsgUnknownCalculation
	}
	a, errA := strconv.ParseFloat(m[1], 64)
	b, errB := strconv.ParseFloat(m[3], 64)
	if errA != nil || errB != nil {
		return MsgUnknownCalculation
	}

	var result float64
	switch m[2] {
	case "+":
		result = a + b
	case "-":
		result = a - b
	case "*":
		result = a * b
	case "/":
		if b == 0 {
			return MsgDivideByZero
		}
		result = a / b
	}
	return "The answer is " + formatNumber(result)
}

// formatNumber prints floats the way people read them aloud: integral values
// keep one decimal ("20.0"), others use the shortest exact form.
func formatNumber(v float64) string {
	abs := math.Abs(v)
	switch {
	case math.IsInf(v, 0) || math.IsNaN(v):
		return strconv.FormatFloat(v, 'g', -1, 64)
	case v == math.Trunc(v) && abs < 1e16:
		return strconv.FormatFloat(v, 'f', 1, 64)
	case abs >= 1e-4 && abs < 1e16:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
}
