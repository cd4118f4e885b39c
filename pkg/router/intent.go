// Package router classifies recognized utterances and dispatches them.
//
// Date, time and arithmetic questions are answered locally without any
// network access. Everything else goes to the knowledge service together
// with the recent conversation history.
package router

import (
	"regexp"
	"strings"
	"unicode"
)

// Intent is the category of an utterance.
type Intent int

const (
	// IntentKnowledge is the default: ask the knowledge service.
	IntentKnowledge Intent = iota
	// IntentWeather covers weather questions. No weather source is wired, so
	// these are answered by the knowledge service.
	IntentWeather
	// IntentDateTime asks for the current date or time.
	IntentDateTime
	// IntentCalculation asks for simple arithmetic.
	IntentCalculation
	// IntentHelp asks what the assistant can do.
	IntentHelp
)

// String returns the intent name.
func (i Intent) String() string {
	switch i {
	case IntentWeather:
		return "weather"
	case IntentDateTime:
		return "datetime"
	case IntentCalculation:
		return "calculation"
	case IntentHelp:
		return "help"
	default:
		return "knowledge"
	}
}

// MarshalText encodes the intent by name.
func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// Keyword sets, matched against word tokens.
var (
	helpWords        = []string{"help"}
	helpPhrases      = []string{"what can you do", "how does this work"}
	weatherWords     = []string{"weather", "temperature", "forecast"}
	dateTimeWords    = []string{"time", "date", "day", "today"}
	calculationWords = []string{"calculate", "math", "plus", "minus", "times", "multiplied", "divided"}
)

// expressionPattern finds "<number> <operator> <number>".
var expressionPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([+\-*/])\s*(\d+(?:\.\d+)?)`)

// Classify returns the intent of text. Classes are tested in priority order:
// help, weather, date/time, calculation, and knowledge as the default.
func Classify(text string) Intent {
	lower := strings.ToLower(text)
	tokens := tokenize(lower)

	switch {
	case containsAny(tokens, helpWords) || containsPhrase(lower, helpPhrases):
		return IntentHelp
	case containsAny(tokens, weatherWords):
		return IntentWeather
	case containsAny(tokens, dateTimeWords):
		return IntentDateTime
	case containsAny(tokens, calculationWords) || expressionPattern.MatchString(lower):
		return IntentCalculation
	default:
		return IntentKnowledge
	}
}

// tokenize splits text into lower-case words. "today's" yields "today" and "s".
func tokenize(lower string) map[string]struct{} {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tokens[f] = struct{}{}
	}
	return tokens
}

func containsAny(tokens map[string]struct{}, words []string) bool {
	for _, w := range words {
		if _, ok := tokens[w]; ok {
			return true
		}
	}
	return false
}

func containsPhrase(lower string, phrases []string) bool {
	normalized := strings.Join(strings.Fields(lower), " ")
	for _, p := range phrases {
		if strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}
