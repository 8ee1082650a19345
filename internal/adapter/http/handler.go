package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/simaogato/portfolio-valuation/internal/adapter/dto"
	"github.com/simaogato/portfolio-valuation/internal/domain"
	"github.com/simaogato/portfolio-valuation/internal/usecase/deposit"
	"github.com/simaogato/portfolio-valuation/internal/usecase/overview"
	"github.com/simaogato/portfolio-valuation/internal/usecase/pricing"
	"github.com/simaogato/portfolio-valuation/internal/usecase/rollup"
	"github.com/simaogato/portfolio-valuation/internal/usecase/trade"
	"github.com/simaogato/portfolio-valuation/internal/usecase/valuation"
)

// Handler handles portfolio valuation HTTP requests
type Handler struct {
	ValuationService *valuation.ValuationService
	TradeService     *trade.TradeService
	DepositService   *deposit.DepositService
	PricingService   *pricing.PricingService
	OverviewService  *overview.OverviewService
	RollupService    *rollup.Service

	// InitialValue is V0 of the value series when the request does not set one
	InitialValue decimal.NullDecimal
}

type tradeRequest struct {
	Date            string      `json:"date"`
	SellAssetSymbol string      `json:"sell_asset_symbol"`
	BuyAssetSymbol  string      `json:"buy_asset_symbol"`
	Amount          json.Number `json:"amount"`
}

type depositRequest struct {
	Date        string      `json:"date"`
	Amount      json.Number `json:"amount"`
	AssetSymbol string      `json:"asset_symbol"`
	Currency    string      `json:"currency"`
}

type priceRequest struct {
	Date  string      `json:"date"`
	Price json.Number `json:"price"`
}

type reconcileRequest struct {
	Date string `json:"date"`
}

func portfolioID(c *fiber.Ctx) (int64, error) {
	return dto.ParsePortfolioID(c.Params("id"))
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return domain.InvalidInput("invalid request body: %v", err)
	}
	return nil
}

func seriesParams(c *fiber.Ctx) dto.SeriesParams {
	return dto.SeriesParams{
		Start:        c.Query("start"),
		End:          c.Query("end"),
		Mode:         c.Query("mode"),
		InitialValue: c.Query("initial_value"),
	}
}

// GetValueSeries returns the event-aware valuation series
// GET /v1/portfolios/:id/value?start=&end=&mode=&initial_value=
func (h *Handler) GetValueSeries(c *fiber.Ctx) error {
	id, err := portfolioID(c)
	if err != nil {
		return err
	}

	q, err := seriesParams(c).Query(id, h.InitialValue)
	if err != nil {
		return err
	}

	points, err := h.ValuationService.ValueSeries(c.UserContext(), q)
	if err != nil {
		return err
	}

	return c.JSON(dto.SeriesPoints(points, dto.ValueKeyPortfolio))
}

// GetWeightsFromInception returns the constant-quantity valuation series
// GET /v1/portfolios/:id/weights?start=&end=&mode=&initial_value=
func (h *Handler) GetWeightsFromInception(c *fiber.Ctx) error {
	id, err := portfolioID(c)
	if err != nil {
		return err
	}

	q, err := seriesParams(c).Query(id, decimal.NullDecimal{})
	if err != nil {
		return err
	}

	points, err := h.ValuationService.WeightsFromInception(c.UserContext(), q)
	if err != nil {
		return err
	}

	return c.JSON(dto.SeriesPoints(points, dto.ValueKeyInception))
}

// SimulateTrade moves an amount from one asset into another
// POST /v1/portfolios/:id/trade
func (h *Handler) SimulateTrade(c *fiber.Ctx) error {
	id, err := portfolioID(c)
	if err != nil {
		return err
	}

	var req tradeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	input, err := dto.TradeParams{
		Date:            req.Date,
		SellAssetSymbol: req.SellAssetSymbol,
		BuyAssetSymbol:  req.BuyAssetSymbol,
		Amount:          req.Amount.String(),
	}.Input(id)
	if err != nil {
		return err
	}

	result, err := h.TradeService.SimulateTrade(c.UserContext(), input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(dto.TradeResult(result))
}

// RecordDeposit records a deposit into an asset or the cash asset
// POST /v1/portfolios/:id/deposits
func (h *Handler) RecordDeposit(c *fiber.Ctx) error {
	id, err := portfolioID(c)
	if err != nil {
		return err
	}

	var req depositRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	input, err := dto.DepositParams{
		Date:        req.Date,
		Amount:      req.Amount.String(),
		AssetSymbol: req.AssetSymbol,
		Currency:    req.Currency,
	}.Input(id)
	if err != nil {
		return err
	}

	result, err := h.DepositService.RecordDeposit(c.UserContext(), input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(dto.DepositResult(result))
}

// GetOverview returns the latest value and weights of a portfolio
// GET /v1/portfolios/:id/overview
func (h *Handler) GetOverview(c *fiber.Ctx) error {
	id, err := portfolioID(c)
	if err != nil {
		return err
	}

	result, err := h.OverviewService.GetOverview(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(dto.Overview(result))
}

// Reconcile re-derives amounts, weights and value of one date
// POST /v1/portfolios/:id/reconcile
func (h *Handler) Reconcile(c *fiber.Ctx) error {
	id, err := portfolioID(c)
	if err != nil {
		return err
	}

	var req reconcileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	date, err := domain.ParseDate("date", req.Date)
	if err != nil {
		return err
	}

	day, err := h.RollupService.Reconcile(c.UserContext(), id, date)
	if err != nil {
		return err
	}

	return c.JSON(dto.Day(day))
}

// RecordPrice appends a price for an asset
// POST /v1/assets/:symbol/prices
func (h *Handler) RecordPrice(c *fiber.Ctx) error {
	symbol := c.Params("symbol")

	var req priceRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	date, err := domain.ParseDate("date", req.Date)
	if err != nil {
		return err
	}
	price, err := dto.ParseDecimal("price", req.Price.String())
	if err != nil {
		return err
	}

	p, err := h.PricingService.RecordPrice(c.UserContext(), symbol, date, price)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(dto.Price(symbol, p))
}

// GetLatestPrice returns the most recent price on or before date
// GET /v1/assets/:symbol/prices/latest?date=
func (h *Handler) GetLatestPrice(c *fiber.Ctx) error {
	symbol := c.Params("symbol")

	date, err := domain.ParseDate("date", c.Query("date"))
	if err != nil {
		return err
	}

	p, err := h.PricingService.LatestPrice(c.UserContext(), symbol, date)
	if err != nil {
		return err
	}

	return c.JSON(dto.Price(symbol, p))
}
