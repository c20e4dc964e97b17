package converter

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/kylycht/ratebot/model"
	"github.com/kylycht/ratebot/service"
	"github.com/rs/zerolog/log"
)

func New(exchange service.Exchange) *Converter {
	return &Converter{
		exchange: exchange,
		validate: validator.New(),
	}
}

type Converter struct {
	exchange service.Exchange    // rate resolution
	validate *validator.Validate // query validation
}

type pairQuery struct {
	From string `query:"from" validate:"required,alpha,min=3,max=4"`
	To   string `query:"to" validate:"required,alpha,min=3,max=4"`
}

type convertQuery struct {
	From   string  `query:"from" validate:"required,alpha,min=3,max=4"`
	To     string  `query:"to" validate:"required,alpha,min=3,max=4"`
	Amount float64 `query:"amount" validate:"gt=0,lte=1000000000"`
}

// RatesResponse is popular rates snapshot
type RatesResponse struct {
	Target model.Symbol  `json:"target"`
	Rates  []model.Quote `json:"rates"`
}

// CurrencyResponse is a catalog entry
type CurrencyResponse struct {
	Symbol model.Symbol `json:"symbol"`
	Name   string       `json:"name"`
	Kind   string       `json:"kind"`
}

// Convert godoc
//
//	@Summary		Convert amount between two currencies
//	@Description	convert fiat to fiat, fiat to crypto, crypto to fiat or crypto to crypto
//	@Tags			converter
//	@Produce		json
//	@Param			from	query		string	true	"From Currency"	example(BTC)
//	@Param			to		query		string	true	"To Currency"	example(USD)
//	@Param			amount	query		number	false	"Amount"		example(3.1)
//	@Success		200		{object}	model.ConversionResult
//	@Failure		400		{object}	ProblemDetails	"unsupported currency or invalid amount"
//	@Failure		502		{object}	ProblemDetails	"rate unavailable"
//	@Router			/convert [get]
func (c *Converter) Convert(ctx *fiber.Ctx) error {
	q := convertQuery{Amount: 1}
	if err := c.bind(ctx, &q); err != nil {
		return problem(ctx, fiber.StatusBadRequest, "Invalid query", err.Error())
	}

	from, to, err := parsePair(pairQuery{From: q.From, To: q.To})
	if err != nil {
		return problem(ctx, fiber.StatusBadRequest, "Invalid currency", err.Error())
	}

	log.Debug().Str("from", from.String()).Str("to", to.String()).Float64("amount", q.Amount).Msg("converting")

	result, err := c.exchange.Convert(ctx.UserContext(), q.Amount, from, to)
	if err != nil {
		return rateProblem(ctx, err)
	}

	return ctx.JSON(result)
}

// Rate godoc
//
//	@Summary		Exchange rate of a pair
//	@Tags			converter
//	@Produce		json
//	@Param			from	query		string	true	"From Currency"	example(TON)
//	@Param			to		query		string	true	"To Currency"	example(BTC)
//	@Success		200		{object}	model.ExchangeRate
//	@Failure		400		{object}	ProblemDetails
//	@Failure		502		{object}	ProblemDetails
//	@Router			/rate [get]
func (c *Converter) Rate(ctx *fiber.Ctx) error {
	q := pairQuery{}
	if err := c.bind(ctx, &q); err != nil {
		return problem(ctx, fiber.StatusBadRequest, "Invalid query", err.Error())
	}

	from, to, err := parsePair(q)
	if err != nil {
		return problem(ctx, fiber.StatusBadRequest, "Invalid currency", err.Error())
	}

	rate, err := c.exchange.Resolve(ctx.UserContext(), from, to)
	if err != nil {
		return rateProblem(ctx, err)
	}

	return ctx.JSON(rate)
}

// Rates godoc
//
//	@Summary		Popular rates snapshot
//	@Description	symbols that failed to resolve are omitted
//	@Tags			converter
//	@Produce		json
//	@Success		200	{object}	RatesResponse
//	@Router			/rates [get]
func (c *Converter) Rates(ctx *fiber.Ctx) error {
	return ctx.JSON(RatesResponse{
		Target: c.exchange.PopularTarget(),
		Rates:  c.exchange.PopularRates(ctx.UserContext()),
	})
}

// Currencies godoc
//
//	@Summary	Supported currencies
//	@Tags		converter
//	@Produce	json
//	@Success	200	{array}	CurrencyResponse
//	@Router		/currencies [get]
func (c *Converter) Currencies(ctx *fiber.Ctx) error {
	currencies := c.exchange.Catalog().Currencies()

	resp := make([]CurrencyResponse, 0, len(currencies))
	for _, cur := range currencies {
		resp = append(resp, CurrencyResponse{
			Symbol: cur.Symbol,
			Name:   cur.Name,
			Kind:   string(cur.Kind),
		})
	}

	return ctx.JSON(resp)
}

// Health godoc
//
//	@Summary	Liveness probe
//	@Tags		system
//	@Success	200	{string}	string	"ok"
//	@Router		/health [get]
func (c *Converter) Health(ctx *fiber.Ctx) error {
	return ctx.SendString("ok")
}

func (c *Converter) bind(ctx *fiber.Ctx, v interface{}) error {
	if err := ctx.QueryParser(v); err != nil {
		return err
	}

	return c.validate.Struct(v)
}

func parsePair(q pairQuery) (model.Symbol, model.Symbol, error) {
	from, err := model.ParseSymbol(q.From)
	if err != nil {
		return "", "", err
	}

	to, err := model.ParseSymbol(q.To)
	if err != nil {
		return "", "", err
	}

	return from, to, nil
}

// Register mounts converter routes on router
func (c *Converter) Register(r fiber.Router) {
	r.Get("/convert", c.Convert)
	r.Get("/rate", c.Rate)
	r.Get("/rates", c.Rates)
	r.Get("/currencies", c.Currencies)
	r.Get("/health", c.Health)
}
