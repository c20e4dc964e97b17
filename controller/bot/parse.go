package bot

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kylycht/ratebot/model"
)

var (
	quickRe   = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s+([A-Z]{3,4})$`)
	convertRe = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s+([a-z]{3,4})\s+to\s+([a-z]{3,4})`)
)

var (
	errAmountFormat      = errors.New("amount is not a number")
	errAmountNotPositive = errors.New("amount must be greater than zero")
	errAmountTooLarge    = errors.New("amount is too large")
)

const (
	callbackPairPrefix = "pair:"
	callbackBack       = "back"
)

// parseCommand splits "/cmd@botname args" into lowercased
// command name and trimmed arguments
func parseCommand(text string) (string, string, bool) {
	if !strings.HasPrefix(text, "/") || len(text) < 2 {
		return "", "", false
	}

	name, args, _ := strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return "", "", false
	}

	return strings.ToLower(name), strings.TrimSpace(args), true
}

// parseConvert parses "100 usd to eur", trailing text is ignored
func parseConvert(args string) (float64, string, string, bool) {
	m := convertRe.FindStringSubmatch(strings.TrimSpace(args))
	if m == nil {
		return 0, "", "", false
	}

	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", "", false
	}

	return amount, strings.ToUpper(m[2]), strings.ToUpper(m[3]), true
}

// parseQuick parses "100 usd" into amount and symbol
func parseQuick(text string) (float64, string, bool) {
	m := quickRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(text)))
	if m == nil {
		return 0, "", false
	}

	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", false
	}

	return amount, m[2], true
}

// parseAmount parses free amount input, comma is accepted as decimal separator
func parseAmount(text string, limit float64) (float64, error) {
	amount, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(text), ",", "."), 64)
	if err != nil {
		return 0, errAmountFormat
	}

	return amount, checkAmount(amount, limit)
}

func checkAmount(amount, limit float64) error {
	switch {
	case math.IsNaN(amount) || math.IsInf(amount, 0):
		return errAmountFormat
	case amount <= 0:
		return errAmountNotPositive
	case limit > 0 && amount > limit:
		return errAmountTooLarge
	}
	return nil
}

func pairCallback(from, to model.Symbol) string {
	return callbackPairPrefix + from.String() + ":" + to.String()
}

// parsePairCallback parses "pair:FROM:TO"
func parsePairCallback(data string) (model.Symbol, model.Symbol, bool) {
	rest, ok := strings.CutPrefix(data, callbackPairPrefix)
	if !ok {
		return "", "", false
	}

	a, b, ok := strings.Cut(rest, ":")
	if !ok {
		return "", "", false
	}

	from, err := model.ParseSymbol(a)
	if err != nil {
		return "", "", false
	}

	to, err := model.ParseSymbol(b)
	if err != nil {
		return "", "", false
	}

	return from, to, true
}
