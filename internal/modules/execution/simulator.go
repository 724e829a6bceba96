// Package execution converts selected opportunities and closures into
// realistic fills with commission and slippage, then applies the resulting
// portfolio, wheel and ledger mutations. Financial state is only touched
// after a fill or assignment price has been fully computed.
package execution

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wheelhouse/internal/domain"
	"github.com/aristath/wheelhouse/internal/modules/ledger"
	"github.com/aristath/wheelhouse/internal/modules/portfolio"
	"github.com/aristath/wheelhouse/internal/modules/scanner"
	"github.com/aristath/wheelhouse/internal/modules/wheel"
)

// Fill-price interpolation weights by spread tier. Tight markets fill closer
// to the mid; wide markets fill closer to the quoted side.
const (
	tightSpreadPct  = 0.05
	normalSpreadPct = 0.10
	tightWeight     = 0.7
	normalWeight    = 0.5
	wideWeight      = 0.3

	sharesPerContract = 100
	minimumFill       = 0.01
)

// Simulator executes fills against the portfolio, wheel machine and ledger
type Simulator struct {
	pf         *portfolio.Portfolio
	wm         *wheel.Machine
	rec        *ledger.Recorder
	commission float64 // per contract, flat
	log        zerolog.Logger
}

// NewSimulator creates a new execution simulator
func NewSimulator(pf *portfolio.Portfolio, wm *wheel.Machine, rec *ledger.Recorder, commissionPerContract float64, log zerolog.Logger) *Simulator {
	return &Simulator{
		pf:         pf,
		wm:         wm,
		rec:        rec,
		commission: commissionPerContract,
		log:        log.With().Str("service", "execution").Logger(),
	}
}

// OpenShort sells the opportunity's contract short and returns the new lot.
// Exactly one ledger entry is appended and one wheel transition fires.
func (s *Simulator) OpenShort(opp *scanner.Opportunity, date time.Time, contracts int) (*portfolio.OptionLot, error) {
	c := opp.Contract
	fill, spreadPct := fillPrice(c.Bid, c.Ask, true)
	notional := fill * sharesPerContract * float64(contracts)
	commission := s.commission * float64(contracts)
	slippage := notional * slippageRate(c.Volume, true)
	net := notional - commission - slippage

	symbol := c.Symbol
	if symbol == "" {
		symbol = contractSymbol(c.Underlying, c.Expiration, c.Kind, c.Strike)
	}

	lot, err := portfolio.NewOptionLot(symbol, c.Underlying, c.Kind, c.Strike, c.Expiration, -contracts, fill, date)
	if err != nil {
		return nil, fmt.Errorf("failed to open short %s: %w", symbol, err)
	}
	lot.EntryBid = c.Bid
	lot.EntryAsk = c.Ask
	lot.EntryVolume = c.Volume

	// Wheel transition validates legality before any financial mutation
	switch c.Kind {
	case domain.OptionKindPut:
		err = s.wm.PutOpened(c.Underlying)
	case domain.OptionKindCall:
		err = s.wm.CallOpened(c.Underlying)
	default:
		err = fmt.Errorf("invalid option kind %q", c.Kind)
	}
	if err != nil {
		return nil, err
	}

	s.pf.AddOptionLot(lot)
	s.pf.Credit(net)

	reason := "best quality candidate"
	if opp.Synthetic {
		reason = "synthesized from target strike, estimated quote"
	}
	if err := s.rec.Record(ledger.Trade{
		Date:       date,
		Action:     domain.TradeActionOpen,
		Symbol:     symbol,
		Underlying: c.Underlying,
		Kind:       c.Kind,
		Quantity:   -contracts,
		Strike:     c.Strike,
		Bid:        c.Bid,
		Ask:        c.Ask,
		Mid:        round2((c.Bid + c.Ask) / 2),
		Fill:       fill,
		Commission: commission,
		Slippage:   round2(slippage),
		Reason:     reason,
	}); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("symbol", symbol).
		Str("kind", string(c.Kind)).
		Float64("fill", fill).
		Float64("spread_pct", spreadPct).
		Float64("net", net).
		Msg("Short position opened")
	return lot, nil
}

// CloseShort buys back a short lot at the given market. The caller resolves
// bid/ask (quote, chain or estimate); the fill interpolates from the ask side.
// The slippage tier is keyed off the volume observed at entry: resolved
// buyback markets (chain-match or estimate tier) carry no volume of their own,
// so entry liquidity stands in as the proxy for the whole position.
func (s *Simulator) CloseShort(lot *portfolio.OptionLot, date time.Time, bid, ask float64, reason string) error {
	contracts := lot.Contracts()
	fill, _ := fillPrice(bid, ask, false)
	cost := fill * sharesPerContract * float64(contracts)
	commission := s.commission * float64(contracts)
	slippage := cost * slippageRate(lot.EntryVolume, false)
	realized := (lot.EntryPrice-fill)*sharesPerContract*float64(contracts) - commission - slippage

	if err := s.closeTransition(lot); err != nil {
		return err
	}
	if err := s.pf.RemoveOptionLot(lot); err != nil {
		return err
	}
	s.pf.Debit(cost + commission + slippage)

	return s.rec.Record(ledger.Trade{
		Date:        date,
		Action:      domain.TradeActionClose,
		Symbol:      lot.Symbol,
		Underlying:  lot.Underlying,
		Kind:        lot.Kind,
		Quantity:    contracts,
		Strike:      lot.Strike,
		Bid:         bid,
		Ask:         ask,
		Mid:         round2((bid + ask) / 2),
		Fill:        fill,
		Commission:  commission,
		Slippage:    round2(slippage),
		RealizedPnL: &realized,
		Reason:      reason,
	})
}

// ExpireWorthless removes a lot that finished out of the money. The full
// entry premium is realized; no commission or slippage applies.
func (s *Simulator) ExpireWorthless(lot *portfolio.OptionLot, date time.Time) error {
	contracts := lot.Contracts()
	realized := lot.EntryPrice * sharesPerContract * float64(contracts)

	if err := s.closeTransition(lot); err != nil {
		return err
	}
	if err := s.pf.RemoveOptionLot(lot); err != nil {
		return err
	}

	return s.rec.Record(ledger.Trade{
		Date:        date,
		Action:      domain.TradeActionClose,
		Symbol:      lot.Symbol,
		Underlying:  lot.Underlying,
		Kind:        lot.Kind,
		Quantity:    contracts,
		Strike:      lot.Strike,
		RealizedPnL: &realized,
		Reason:      "expired_worthless",
	})
}

// AssignPut exercises an ITM short put: cash is debited by exactly
// strike × 100 × contracts (no commission or slippage on assignment) and the
// shares land in a stock lot at the strike cost basis.
func (s *Simulator) AssignPut(lot *portfolio.OptionLot, date time.Time, spot float64) error {
	if lot.Kind != domain.OptionKindPut {
		return fmt.Errorf("cannot put-assign a %s lot", lot.Kind)
	}
	contracts := lot.Contracts()
	shares := contracts * sharesPerContract
	cost := lot.Strike * float64(shares)

	if err := s.wm.PutAssigned(lot.Underlying); err != nil {
		return err
	}
	if err := s.pf.RemoveOptionLot(lot); err != nil {
		return err
	}
	s.pf.Debit(cost)
	if err := s.pf.AddStockLot(lot.Underlying, shares, lot.Strike, date); err != nil {
		return err
	}

	s.log.Info().
		Str("symbol", lot.Symbol).
		Float64("strike", lot.Strike).
		Int("shares", shares).
		Msg("Put assigned")

	return s.rec.Record(ledger.Trade{
		Date:       date,
		Action:     domain.TradeActionAssignment,
		Symbol:     lot.Symbol,
		Underlying: lot.Underlying,
		Kind:       lot.Kind,
		Quantity:   shares,
		Strike:     lot.Strike,
		Fill:       lot.Strike,
		Reason:     fmt.Sprintf("put assigned, spot %.2f below strike", spot),
	})
}

// AssignCall exercises an ITM short call: shares are called away at the
// strike and the wheel cycle completes. Realized P&L is exactly
// (strike − avg cost) × shares; only commission reduces the cash credit.
func (s *Simulator) AssignCall(lot *portfolio.OptionLot, date time.Time, spot float64) error {
	if lot.Kind != domain.OptionKindCall {
		return fmt.Errorf("cannot call-assign a %s lot", lot.Kind)
	}
	contracts := lot.Contracts()
	shares := contracts * sharesPerContract

	stock := s.pf.StockLot(lot.Underlying)
	if stock == nil || stock.Shares < shares {
		return fmt.Errorf("call assignment for %s needs %d shares, portfolio holds none or fewer", lot.Underlying, shares)
	}

	proceeds := lot.Strike * float64(shares)
	commission := s.commission * float64(contracts)
	realized := (lot.Strike - stock.AvgCost) * float64(shares)

	if err := s.wm.CallAssigned(lot.Underlying); err != nil {
		return err
	}
	if err := s.pf.RemoveOptionLot(lot); err != nil {
		return err
	}
	if err := s.pf.RemoveStockShares(lot.Underlying, shares); err != nil {
		return err
	}
	s.pf.Credit(proceeds - commission)

	s.log.Info().
		Str("symbol", lot.Symbol).
		Float64("strike", lot.Strike).
		Float64("realized", realized).
		Msg("Call assigned, cycle complete")

	return s.rec.Record(ledger.Trade{
		Date:        date,
		Action:      domain.TradeActionAssignment,
		Symbol:      lot.Symbol,
		Underlying:  lot.Underlying,
		Kind:        lot.Kind,
		Quantity:    -shares,
		Strike:      lot.Strike,
		Fill:        lot.Strike,
		Commission:  commission,
		RealizedPnL: &realized,
		Reason:      fmt.Sprintf("call assigned, spot %.2f above strike", spot),
	})
}

// RecordSkipped appends a veto entry so risk decisions are never silent
func (s *Simulator) RecordSkipped(date time.Time, underlying string, kind domain.OptionKind, reason string) error {
	return s.rec.Record(ledger.Trade{
		Date:       date,
		Action:     domain.TradeActionSkipped,
		Symbol:     underlying,
		Underlying: underlying,
		Kind:       kind,
		Reason:     reason,
	})
}

func (s *Simulator) closeTransition(lot *portfolio.OptionLot) error {
	if lot.Kind == domain.OptionKindPut {
		return s.wm.PutClosed(lot.Underlying)
	}
	return s.wm.CallClosed(lot.Underlying)
}

// fillPrice interpolates a fill between bid and ask by spread tier.
// Selling (opening) fills from the bid side, buying back from the ask side.
// The result is clamped to [bid, ask], floored at a cent and rounded to cents.
func fillPrice(bid, ask float64, opening bool) (float64, float64) {
	mid := (bid + ask) / 2
	var spreadPct float64
	if mid > 0 {
		spreadPct = (ask - bid) / mid
	}

	weight := wideWeight
	switch {
	case spreadPct < tightSpreadPct:
		weight = tightWeight
	case spreadPct < normalSpreadPct:
		weight = normalWeight
	}

	var fill float64
	if opening {
		fill = bid + weight*(mid-bid)
	} else {
		fill = ask - weight*(ask-mid)
	}

	fill = math.Max(fill, minimumFill)
	fill = round2(fill)
	fill = math.Max(bid, math.Min(ask, fill))
	return fill, spreadPct
}

// slippageRate returns slippage as a fraction of notional by volume tier
func slippageRate(volume int64, opening bool) float64 {
	switch {
	case volume < 20:
		if opening {
			return 0.0025
		}
		return 0.0030
	case volume < 100:
		if opening {
			return 0.0010
		}
		return 0.0015
	default:
		if opening {
			return 0.0005
		}
		return 0.0008
	}
}

// contractSymbol builds an OCC-style identifier for synthesized contracts
func contractSymbol(underlying string, expiration time.Time, kind domain.OptionKind, strike float64) string {
	side := "P"
	if kind == domain.OptionKindCall {
		side = "C"
	}
	return fmt.Sprintf("%s%s%s%08d", underlying, expiration.Format("060102"), side, int(math.Round(strike*1000)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
