package lem

import (
	"time"

	"github.com/gridmarket/lem/account"
	"github.com/gridmarket/lem/accounting"
	"github.com/gridmarket/lem/metrics"
	"github.com/gridmarket/lem/venue/matching"
	"github.com/shopspring/decimal"
)

// ErrorResponse is returned by the REST API for every failed request.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a REST API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TradeResponse is a single executed trade.
type TradeResponse struct {
	Seller        string          `json:"seller"`
	Buyer         string          `json:"buyer"`
	Quantity      decimal.Decimal `json:"quantity"`
	SellerRate    decimal.Decimal `json:"seller_rate"`
	BuyerRate     decimal.Decimal `json:"buyer_rate"`
	SellerRevenue decimal.Decimal `json:"seller_revenue"`
	BuyerPayment  decimal.Decimal `json:"buyer_payment"`
}

// SegmentResponse is one step of the merged demand/supply curve. Missing
// prices mean that side of the curve is exhausted.
type SegmentResponse struct {
	CumulativeQuantity decimal.Decimal  `json:"cumulative_quantity"`
	Quantity           decimal.Decimal  `json:"quantity"`
	BidPrice           *decimal.Decimal `json:"bid_price,omitempty"`
	OfferPrice         *decimal.Decimal `json:"offer_price,omitempty"`
	Buyer              string           `json:"buyer,omitempty"`
	Seller             string           `json:"seller,omitempty"`
}

// ClearingResponse is the outcome of clearing a single order book.
type ClearingResponse struct {
	Rule             string            `json:"rule"`
	ExecutionType    string            `json:"execution_type"`
	Quantity         decimal.Decimal   `json:"quantity"`
	Price            decimal.Decimal   `json:"price"`
	SellPrice        decimal.Decimal   `json:"sell_price"`
	Turnover         decimal.Decimal   `json:"turnover"`
	SellerRevenue    decimal.Decimal   `json:"seller_revenue"`
	Surplus          decimal.Decimal   `json:"surplus"`
	BudgetBalanced   bool              `json:"budget_balanced"`
	BoundaryFallback bool              `json:"boundary_fallback"`
	TotalDemand      decimal.Decimal   `json:"total_demand"`
	TotalSupply      decimal.Decimal   `json:"total_supply"`
	Trades           []TradeResponse   `json:"trades"`
	Segments         []SegmentResponse `json:"segments,omitempty"`
}

// RoundResponse is a single recorded round of the market.
type RoundResponse struct {
	RoundID          string          `json:"round_id"`
	Sequence         uint64          `json:"sequence"`
	Timestamp        time.Time       `json:"timestamp"`
	Rule             string          `json:"rule"`
	ExecutionType    string          `json:"execution_type"`
	Quantity         decimal.Decimal `json:"quantity"`
	Price            decimal.Decimal `json:"price"`
	Turnover         decimal.Decimal `json:"turnover"`
	SellerRevenue    decimal.Decimal `json:"seller_revenue"`
	Surplus          decimal.Decimal `json:"surplus"`
	Trades           int             `json:"trades"`
	BudgetBalanced   bool            `json:"budget_balanced"`
	BoundaryFallback bool            `json:"boundary_fallback"`
}

// AccountResponse is the settlement account of a single participant.
type AccountResponse struct {
	Participant  string          `json:"participant"`
	State        string          `json:"state"`
	Balance      decimal.Decimal `json:"balance"`
	Revenue      decimal.Decimal `json:"revenue"`
	Payments     decimal.Decimal `json:"payments"`
	EnergyBought decimal.Decimal `json:"energy_bought"`
	EnergySold   decimal.Decimal `json:"energy_sold"`
	AvgBuyPrice  decimal.Decimal `json:"avg_buy_price"`
	AvgSellPrice decimal.Decimal `json:"avg_sell_price"`
}

// SummaryResponse aggregates all rounds of a time window.
type SummaryResponse struct {
	Start            time.Time       `json:"start"`
	End              time.Time       `json:"end"`
	Rounds           int             `json:"rounds"`
	NoTradeRounds    int             `json:"no_trade_rounds"`
	ImbalancedRounds int             `json:"imbalanced_rounds"`
	FallbackRounds   int             `json:"fallback_rounds"`
	Trades           int             `json:"trades"`
	Volume           decimal.Decimal `json:"volume"`
	Turnover         decimal.Decimal `json:"turnover"`
	SellerRevenue    decimal.Decimal `json:"seller_revenue"`
	Surplus          decimal.Decimal `json:"surplus"`
	AveragePrice     decimal.Decimal `json:"average_price"`
	MedianPrice      float64         `json:"median_price"`
	PriceStdDev      float64         `json:"price_std_dev"`
	ExecutionRate    float64         `json:"execution_rate"`
}

// MarketResponse describes the running market.
type MarketResponse struct {
	Version       string        `json:"version"`
	Engine        string        `json:"engine"`
	Interval      time.Duration `json:"interval"`
	NextInterval  int           `json:"next_interval"`
	ClearingStart time.Time     `json:"clearing_start"`
	Failures      uint64        `json:"failures"`
	Exhausted     bool          `json:"exhausted"`
}

// NewClearingResponse converts a clearing result. The curve segments are
// only included if withCurve is set.
func NewClearingResponse(result *matching.ClearingResult,
	withCurve bool) *ClearingResponse {

	resp := &ClearingResponse{
		Rule:             result.Rule.String(),
		ExecutionType:    result.Type.String(),
		Quantity:         result.Quantity,
		Price:            result.Price,
		SellPrice:        result.SellPrice,
		Turnover:         result.TotalTurnover,
		SellerRevenue:    result.SellerRevenue,
		Surplus:          result.Surplus,
		BudgetBalanced:   result.BudgetBalanced,
		BoundaryFallback: result.BoundaryFallback,
		TotalDemand:      result.TotalDemand,
		TotalSupply:      result.TotalSupply,
		Trades:           make([]TradeResponse, 0, len(result.TradePairs)),
	}

	for _, t := range result.TradePairs {
		resp.Trades = append(resp.Trades, TradeResponse{
			Seller:        string(t.Seller),
			Buyer:         string(t.Buyer),
			Quantity:      t.Quantity,
			SellerRate:    t.SellerRate,
			BuyerRate:     t.BuyerRate,
			SellerRevenue: t.SellerRevenue,
			BuyerPayment:  t.BuyerPayment,
		})
	}

	if withCurve {
		resp.Segments = NewSegmentResponses(result.Segments)
	}

	return resp
}

// NewSegmentResponses converts the segments of a merged curve.
func NewSegmentResponses(segments []matching.Segment) []SegmentResponse {
	resp := make([]SegmentResponse, 0, len(segments))
	for _, s := range segments {
		seg := SegmentResponse{
			CumulativeQuantity: s.CumulativeQuantity,
			Quantity:           s.Quantity,
			Buyer:              string(s.Buyer),
			Seller:             string(s.Seller),
		}
		if s.BidPrice.Valid {
			price := s.BidPrice.Decimal
			seg.BidPrice = &price
		}
		if s.OfferPrice.Valid {
			price := s.OfferPrice.Decimal
			seg.OfferPrice = &price
		}
		resp = append(resp, seg)
	}

	return resp
}

// newRoundResponse converts a recorded round.
func newRoundResponse(e *accounting.RoundEntry) RoundResponse {
	return RoundResponse{
		RoundID:          e.RoundID.String(),
		Sequence:         e.Sequence,
		Timestamp:        e.Timestamp,
		Rule:             e.Rule.String(),
		ExecutionType:    e.Type.String(),
		Quantity:         e.Quantity,
		Price:            e.Price,
		Turnover:         e.Turnover,
		SellerRevenue:    e.SellerRevenue,
		Surplus:          e.Surplus,
		Trades:           e.Trades,
		BudgetBalanced:   e.BudgetBalanced,
		BoundaryFallback: e.BoundaryFallback,
	}
}

// newAccountResponse converts a ledger account.
func newAccountResponse(a *account.Account) AccountResponse {
	return AccountResponse{
		Participant:  string(a.Participant),
		State:        a.State.String(),
		Balance:      a.Balance,
		Revenue:      a.Revenue,
		Payments:     a.Payments,
		EnergyBought: a.EnergyBought,
		EnergySold:   a.EnergySold,
		AvgBuyPrice:  a.AvgBuyPrice(),
		AvgSellPrice: a.AvgSellPrice(),
	}
}

// newSummaryResponse combines the accounting summary of a window with the
// price statistics of the same rounds.
func newSummaryResponse(start, end time.Time, s *accounting.Summary,
	m *metrics.RoundMetric) *SummaryResponse {

	resp := &SummaryResponse{
		Start:            start,
		End:              end,
		Rounds:           s.Rounds,
		NoTradeRounds:    s.NoTradeRounds,
		ImbalancedRounds: s.ImbalancedRounds,
		FallbackRounds:   s.FallbackRounds,
		Trades:           s.Trades,
		Volume:           s.Volume,
		Turnover:         s.Turnover,
		SellerRevenue:    s.SellerRevenue,
		Surplus:          s.Surplus,
		AveragePrice:     s.AveragePrice,
	}
	if m != nil {
		resp.MedianPrice = m.MedianPrice
		resp.PriceStdDev = m.PriceStdDev
		resp.ExecutionRate = m.ExecutionRate()
	}

	return resp
}

// WindowMetricResponse contains the round statistics of a trailing time
// window.
type WindowMetricResponse struct {
	Window        time.Duration   `json:"window"`
	Rounds        int             `json:"rounds"`
	TradedRounds  int             `json:"traded_rounds"`
	TotalVolume   decimal.Decimal `json:"total_volume"`
	TotalTurnover decimal.Decimal `json:"total_turnover"`
	TotalSurplus  decimal.Decimal `json:"total_surplus"`
	MedianPrice   float64         `json:"median_price"`
	MeanPrice     float64         `json:"mean_price"`
	PriceStdDev   float64         `json:"price_std_dev"`
	MedianVolume  float64         `json:"median_volume"`
}

// newWindowMetricResponse converts the round statistics of a window.
func newWindowMetricResponse(window time.Duration,
	m *metrics.RoundMetric) WindowMetricResponse {

	return WindowMetricResponse{
		Window:        window,
		Rounds:        m.Rounds,
		TradedRounds:  m.TradedRounds,
		TotalVolume:   m.TotalVolume,
		TotalTurnover: m.TotalTurnover,
		TotalSurplus:  m.TotalSurplus,
		MedianPrice:   m.MedianPrice,
		MeanPrice:     m.MeanPrice,
		PriceStdDev:   m.PriceStdDev,
		MedianVolume:  m.MedianVolume,
	}
}
