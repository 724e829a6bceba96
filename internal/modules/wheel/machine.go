// Package wheel tracks, per underlying symbol, which side of the wheel
// strategy is legal to sell next. The scanner consults the machine before any
// scan runs, so illegal trades are structurally unreachable.
package wheel

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Phase represents the wheel phase for one underlying
type Phase string

const (
	PhaseNoPosition Phase = "no_position"
	PhasePutOpen    Phase = "put_open"
	PhaseStockHeld  Phase = "stock_held"
	PhaseCallOpen   Phase = "call_open"
)

// State holds the wheel phase and cycle counter for one symbol
type State struct {
	Symbol          string `json:"symbol"`
	Phase           Phase  `json:"phase"`
	CompletedCycles int    `json:"completed_cycles"`
}

// Machine owns the per-symbol wheel states for one run
type Machine struct {
	states map[string]*State
	log    zerolog.Logger
}

// NewMachine creates an empty wheel state machine
func NewMachine(log zerolog.Logger) *Machine {
	return &Machine{
		states: make(map[string]*State),
		log:    log.With().Str("service", "wheel").Logger(),
	}
}

// State returns the state for a symbol, creating it in NoPosition
func (m *Machine) State(symbol string) *State {
	if s, ok := m.states[symbol]; ok {
		return s
	}
	s := &State{Symbol: symbol, Phase: PhaseNoPosition}
	m.states[symbol] = s
	return s
}

// States returns every tracked symbol state
func (m *Machine) States() map[string]*State {
	return m.states
}

// CanSellPut reports whether selling a put is legal for the symbol.
// True exactly when the phase is NoPosition.
func (m *Machine) CanSellPut(symbol string) bool {
	return m.State(symbol).Phase == PhaseNoPosition
}

// CanSellCall reports whether selling a covered call is legal for the symbol.
// True exactly when the phase is StockHeld.
func (m *Machine) CanSellCall(symbol string) bool {
	return m.State(symbol).Phase == PhaseStockHeld
}

// PutOpened transitions NoPosition -> PutOpen
func (m *Machine) PutOpened(symbol string) error {
	return m.transition(symbol, PhaseNoPosition, PhasePutOpen)
}

// PutClosed transitions PutOpen -> NoPosition (worthless expiry or early close)
func (m *Machine) PutClosed(symbol string) error {
	return m.transition(symbol, PhasePutOpen, PhaseNoPosition)
}

// PutAssigned transitions PutOpen -> StockHeld
func (m *Machine) PutAssigned(symbol string) error {
	return m.transition(symbol, PhasePutOpen, PhaseStockHeld)
}

// CallOpened transitions StockHeld -> CallOpen
func (m *Machine) CallOpened(symbol string) error {
	return m.transition(symbol, PhaseStockHeld, PhaseCallOpen)
}

// CallClosed transitions CallOpen -> StockHeld (worthless expiry or early close)
func (m *Machine) CallClosed(symbol string) error {
	return m.transition(symbol, PhaseCallOpen, PhaseStockHeld)
}

// CallAssigned transitions CallOpen -> NoPosition and completes a cycle
func (m *Machine) CallAssigned(symbol string) error {
	if err := m.transition(symbol, PhaseCallOpen, PhaseNoPosition); err != nil {
		return err
	}
	s := m.State(symbol)
	s.CompletedCycles++
	m.log.Info().Str("symbol", symbol).Int("cycles", s.CompletedCycles).Msg("Wheel cycle completed")
	return nil
}

func (m *Machine) transition(symbol string, from, to Phase) error {
	s := m.State(symbol)
	if s.Phase != from {
		return fmt.Errorf("illegal wheel transition for %s: %s -> %s (current phase %s)", symbol, from, to, s.Phase)
	}
	s.Phase = to
	m.log.Debug().Str("symbol", symbol).Str("from", string(from)).Str("to", string(to)).Msg("Wheel transition")
	return nil
}
