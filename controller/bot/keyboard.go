package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kylycht/ratebot/model"
)

const buttonsPerRow = 2

// Pair is a quick conversion button
type Pair struct {
	From  model.Symbol
	To    model.Symbol
	Label string // button text, "FROM → TO" when empty
}

func (p Pair) label() string {
	if p.Label != "" {
		return p.Label
	}
	return p.From.String() + " → " + p.To.String()
}

// DefaultPairs is the quick conversion keyboard used when none is configured
var DefaultPairs = []Pair{
	{From: "USDT", To: "UAH", Label: "💰 USDT → UAH"},
	{From: "USD", To: "UAH", Label: "💵 USD → UAH"},
	{From: "EUR", To: "UAH", Label: "💶 EUR → UAH"},
	{From: "RUB", To: "UAH", Label: "₽ RUB → UAH"},
	{From: "USDT", To: "USD", Label: "💰 USDT → USD"},
	{From: "BTC", To: "USD", Label: "₿ BTC → USD"},
	{From: "ETH", To: "USD", Label: "⟠ ETH → USD"},
	{From: "TON", To: "USD", Label: "💎 TON → USD"},
	{From: "TRX", To: "USD", Label: "🔥 TRX → USD"},
	{From: "RUB", To: "USD", Label: "₽ RUB → USD"},
}

func pairsKeyboard(pairs []Pair) tgbotapi.InlineKeyboardMarkup {
	var (
		rows [][]tgbotapi.InlineKeyboardButton
		row  []tgbotapi.InlineKeyboardButton
	)

	for _, p := range pairs {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(p.label(), pairCallback(p.From, p.To)))
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func singleButtonKeyboard(text, data string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(text, data)),
	)
}
