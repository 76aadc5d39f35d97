// Package statistics summarises a run of settled hands in big blinds per
// player, with enough bookkeeping to check that no chips were created or
// lost along the way.
package statistics

import (
	"fmt"
	"math"
	"sort"

	"github.com/lox/fairtable/internal/hand"
)

// Player tracks one player's results in big blinds.
type Player struct {
	ID     string
	Hands  int
	SumBB  float64
	SumBB2 float64 // Sum of squares for variance calculation
	Values []float64

	ShowdownWins    int
	NonShowdownWins int
	ShowdownBB      float64 // BB from showdown (wins AND losses)
	NonShowdownBB   float64 // BB from hands that ended without one
}

// Mean returns the arithmetic mean in big blinds per hand
func (p *Player) Mean() float64 {
	if p.Hands == 0 {
		return 0
	}
	return p.SumBB / float64(p.Hands)
}

// Variance returns the sample variance
func (p *Player) Variance() float64 {
	if p.Hands < 2 {
		return 0
	}
	mean := p.Mean()
	return (p.SumBB2 - float64(p.Hands)*mean*mean) / float64(p.Hands-1)
}

// StdDev returns the sample standard deviation
func (p *Player) StdDev() float64 {
	return math.Sqrt(p.Variance())
}

// StdError returns the standard error of the mean
func (p *Player) StdError() float64 {
	if p.Hands == 0 {
		return 0
	}
	return p.StdDev() / math.Sqrt(float64(p.Hands))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (p *Player) ConfidenceInterval95() (float64, float64) {
	mean := p.Mean()
	margin := 1.96 * p.StdError()
	return mean - margin, mean + margin
}

// Median returns the median result
func (p *Player) Median() float64 {
	if len(p.Values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), p.Values...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

func (p *Player) add(netBB float64, showdown bool) {
	p.Hands++
	p.SumBB += netBB
	p.SumBB2 += netBB * netBB
	p.Values = append(p.Values, netBB)
	if showdown {
		p.ShowdownBB += netBB
		if netBB > 0 {
			p.ShowdownWins++
		}
	} else {
		p.NonShowdownBB += netBB
		if netBB > 0 {
			p.NonShowdownWins++
		}
	}
}

// Session accumulates hands from one or more tables.
type Session struct {
	Hands     int
	Voided    int
	Showdowns int

	MaxPotChips int64
	MaxPotBB    float64

	// NetChips is the sum of every player's result; anything but zero
	// means chips were created or destroyed.
	NetChips int64

	players map[string]*Player
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{players: make(map[string]*Player)}
}

// Add records a settled or voided hand.
func (s *Session) Add(h *hand.History) {
	s.Hands++
	if h.Voided {
		s.Voided++
	}
	showdown := false
	for _, p := range h.Players {
		if p.Shown {
			showdown = true
			break
		}
	}
	if showdown {
		s.Showdowns++
	}

	var pot int64
	for _, p := range h.Pots {
		pot += p.Amount
	}
	bb := float64(h.BigBlind)
	if bb == 0 {
		bb = 1
	}
	if pot > s.MaxPotChips {
		s.MaxPotChips = pot
		s.MaxPotBB = float64(pot) / bb
	}

	for id, delta := range h.Deltas() {
		s.NetChips += delta
		p := s.players[id]
		if p == nil {
			p = &Player{ID: id}
			s.players[id] = p
		}
		p.add(float64(delta)/bb, showdown)
	}
}

// Player returns id's results, nil if they never played.
func (s *Session) Player(id string) *Player {
	return s.players[id]
}

// Players returns every player's results ordered by id.
func (s *Session) Players() []*Player {
	out := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Validate checks the session's accounting.
func (s *Session) Validate() error {
	if s.NetChips != 0 {
		return fmt.Errorf("chip ledger off by %d", s.NetChips)
	}
	for _, p := range s.players {
		if len(p.Values) != p.Hands {
			return fmt.Errorf("player %s: %d values for %d hands", p.ID, len(p.Values), p.Hands)
		}
		if math.Abs(p.SumBB-p.ShowdownBB-p.NonShowdownBB) > 1e-6 {
			return fmt.Errorf("player %s: showdown split %.6f+%.6f does not match %.6f",
				p.ID, p.ShowdownBB, p.NonShowdownBB, p.SumBB)
		}
		if p.ShowdownWins+p.NonShowdownWins > p.Hands {
			return fmt.Errorf("player %s: %d wins in %d hands", p.ID, p.ShowdownWins+p.NonShowdownWins, p.Hands)
		}
	}
	return nil
}
