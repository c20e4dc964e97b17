package bot

const (
	welcomeText = `🤖 Hi! I am a currency converter bot!

💱 What I can do:
• Convert currencies: /convert 100 USD to EUR
• Show rates: /rates
• Quick conversion: just type 20 USD

💰 Supported currencies: %s

💡 Pick a popular pair below or use the commands.`

	helpText = `📖 Commands:

/start - Greeting with pair buttons
/quick - Quick conversion (buttons)
/help - This help
/rates - Current rates
/convert <amount> <currency> to <currency> - Conversion

📝 Examples:
• /convert 100 USD to RUB
• /convert 50 EUR to UAH
• /convert 0.5 BTC to USD
• /convert 1000 TRX to USD
• 50 EUR (quick conversion to %s)

💡 The handiest way is the /quick command!`

	unknownText = `❓ I did not understand that. Here is what you can do:

📝 Examples:
• /convert 100 USDT to UAH
• /convert 50 USD to RUB
• /convert 1000 RUB to UAH
• /convert 0.1 BTC to USD

💡 Or send /convert to pick a currency pair`

	quickText         = "💱 Choose a currency pair for quick conversion:"
	pairSelectionText = "💱 Choose a currency pair to convert:\n\n📊 Live fiat and crypto rates\n⚡ Enter the amount after choosing"
	pairSelectedText  = "💱 Selected pair: %s → %s\n\n💰 Enter the amount in %s:\n\n📝 Examples:\n%s\n\n⚡ Just type a number!"
	anotherText       = "💡 Want another conversion?"

	ratesHeaderText = "💱 Current rates against %s:\n\n"
	ratesLineText   = "%s: %s %s\n"
	ratesFailedText = "❌ Could not fetch exchange rates"

	conversionText = "💱 Conversion:\n\n📊 %s %s\n🔄 %s %s\n\n📈 Rate: 1 %s = %s %s"

	errorText             = "❌ Something went wrong. Try again later."
	invalidFormatText     = "❌ Invalid format. Use: /convert 100 USD to EUR"
	unsupportedText       = "❌ Currency is not supported. Available: %s"
	amountFormatText      = "❌ Enter a valid number.\n\n📝 Examples: 100, 50.5, 0.25\n\n💰 Try again:"
	amountNotPositiveText = "❌ The amount must be greater than zero. Try again:"
	amountTooLargeText    = "❌ The amount is too large. Enter a smaller one:"
	slowDownText          = "⏳ Too many requests, slow down a little"
	unknownPairText       = "❌ This pair is no longer available"

	backButton    = "🔙 Choose another pair"
	anotherButton = "🔄 Another conversion"
)

// amountExamples returns input hints for pair selection
func amountExamples(s string) string {
	var a, b string

	switch s {
	case "USDT":
		a, b = "100", "50.5"
	case "USD":
		a, b = "100", "25.75"
	case "EUR":
		a, b = "50", "75.25"
	case "UAH", "RUB":
		a, b = "1000", "2500"
	case "BTC", "ETH":
		a, b = "0.1", "0.025"
	case "TRX", "TON":
		a, b = "1000", "5000"
	default:
		a, b = "100", "50.5"
	}

	return "• " + a + " (for " + a + " " + s + ")\n• " + b + " (for " + b + " " + s + ")"
}
