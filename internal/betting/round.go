package betting

// Result reports the effect of one applied action.
type Result struct {
	Seat int
	// Action is the action as applied: a call for the whole stack comes back
	// as AllInKind, and Amount carries the player's new round total.
	Action Action
	// Paid is the number of chips moved from stack to pot.
	Paid int64
	// Complete is set once no further action is needed this round.
	Complete bool
	// Uncontested is set when at most one player is left in the hand.
	Uncontested bool
}

// Round is one betting round. Players are shared with the caller in seat
// order; the round mutates their Stack, Bet, Contribution and Status.
//
// Each player carries a pending flag, set while they still owe a decision,
// and a closed flag, set when the only raise they face is a short all-in
// after they had already acted. Closed players may call or fold but not
// raise.
type Round struct {
	Street        Street
	CurrentBet    int64
	MinRaise      int64
	LastAggressor int

	players []*Player
	pending []bool
	closed  []bool
	toAct   int
	done    bool
}

// NewRound opens a betting round. Blinds and antes must already be committed
// through Player.Commit. first is the index in players from which the first
// actor is searched, and bigBlind is the minimum opening bet and raise.
func NewRound(street Street, players []*Player, first int, bigBlind int64) *Round {
	r := &Round{
		Street:        street,
		MinRaise:      bigBlind,
		LastAggressor: -1,
		players:       players,
		pending:       make([]bool, len(players)),
		closed:        make([]bool, len(players)),
		toAct:         -1,
	}
	for i, p := range players {
		r.CurrentBet = max(r.CurrentBet, p.Bet)
		r.pending[i] = p.CanAct()
	}
	if len(players) > 0 {
		r.seek(((first%len(players))+len(players))%len(players), 0)
	} else {
		r.done = true
	}
	return r
}

// ToAct returns the seat that must act next.
func (r *Round) ToAct() (int, bool) {
	if r.done || r.toAct < 0 {
		return -1, false
	}
	return r.players[r.toAct].Seat, true
}

// Complete reports whether the round needs no more action.
func (r *Round) Complete() bool { return r.done }

// Players returns the players in the round.
func (r *Round) Players() []*Player { return r.players }

// ToCall returns what seat must add to match the current bet.
func (r *Round) ToCall(seat int) int64 {
	for _, p := range r.players {
		if p.Seat == seat {
			return max(0, r.CurrentBet-p.Bet)
		}
	}
	return 0
}

// ApplyAction validates and applies an action by seat. A rejected action
// returns an *ActionError and leaves every player untouched.
func (r *Round) ApplyAction(seat int, a Action) (Result, error) {
	if r.done {
		return Result{}, &ActionError{Seat: seat, Action: a, Reason: "round is complete", Err: ErrRoundComplete}
	}
	i := r.toAct
	p := r.players[i]
	if p.Seat != seat {
		return Result{}, &ActionError{Seat: seat, Action: a, Reason: "waiting on another seat", Err: ErrNotYourTurn}
	}

	kind, to, err := r.resolve(i, a)
	if err != nil {
		return Result{}, err
	}

	res := Result{Seat: seat, Action: Action{Kind: kind}}
	switch kind {
	case Fold:
		p.Status = Folded
	case Check:
	default:
		paid, err := r.raiseTo(i, to)
		if err != nil {
			return Result{}, err
		}
		res.Paid = paid
		res.Action.Amount = p.Bet
	}
	r.pending[i] = false
	r.closed[i] = false
	r.seek(i, 1)

	res.Complete = r.done
	res.Uncontested = r.inHand() <= 1
	return res, nil
}

// resolve validates a and returns the effective kind and the player's
// resulting round total.
func (r *Round) resolve(i int, a Action) (Kind, int64, error) {
	p := r.players[i]
	toCall := r.CurrentBet - p.Bet
	allInTo, err := AddChips(p.Bet, p.Stack)
	if err != nil {
		return 0, 0, err
	}

	switch a.Kind {
	case Fold:
		return Fold, p.Bet, nil

	case Check:
		if toCall > 0 {
			return 0, 0, illegal(p.Seat, a, "cannot check facing %d to call", toCall)
		}
		return Check, p.Bet, nil

	case Call:
		if toCall <= 0 {
			return 0, 0, illegal(p.Seat, a, "nothing to call")
		}
		if toCall >= p.Stack {
			return AllInKind, allInTo, nil
		}
		return Call, r.CurrentBet, nil

	case Bet, Raise:
		if a.Kind == Bet && r.CurrentBet > 0 {
			return 0, 0, illegal(p.Seat, a, "facing a bet of %d, raise instead", r.CurrentBet)
		}
		if a.Kind == Raise && r.CurrentBet == 0 {
			return 0, 0, illegal(p.Seat, a, "nothing to raise, bet instead")
		}
		if r.closed[i] {
			return 0, 0, illegal(p.Seat, a, "betting was not reopened, call or fold")
		}
		if a.Amount > allInTo {
			return 0, 0, illegal(p.Seat, a, "amount %d exceeds stack, most is %d", a.Amount, allInTo)
		}
		if a.Amount <= r.CurrentBet {
			return 0, 0, illegal(p.Seat, a, "must raise above %d", r.CurrentBet)
		}
		if a.Amount == allInTo {
			return AllInKind, allInTo, nil
		}
		if a.Amount-r.CurrentBet < r.MinRaise {
			return 0, 0, illegal(p.Seat, a, "minimum is %d", r.CurrentBet+r.MinRaise)
		}
		return a.Kind, a.Amount, nil

	case AllInKind:
		if p.Stack == 0 {
			return 0, 0, illegal(p.Seat, a, "no chips behind")
		}
		if allInTo > r.CurrentBet && r.closed[i] {
			return 0, 0, illegal(p.Seat, a, "betting was not reopened, call or fold")
		}
		return AllInKind, allInTo, nil
	}
	return 0, 0, illegal(p.Seat, a, "unknown action")
}

// raiseTo moves chips so that player i's round total is to, and reopens
// action for the others when to exceeds the current bet.
func (r *Round) raiseTo(i int, to int64) (int64, error) {
	p := r.players[i]
	paid, err := p.Commit(to - p.Bet)
	if err != nil {
		return 0, err
	}
	if to <= r.CurrentBet {
		return paid, nil
	}

	increment := to - r.CurrentBet
	full := increment >= r.MinRaise
	for j, q := range r.players {
		if j == i || !q.CanAct() {
			continue
		}
		if full {
			r.closed[j] = false
		} else if !r.pending[j] {
			r.closed[j] = true
		}
		r.pending[j] = true
	}
	if full {
		r.MinRaise = increment
	}
	r.CurrentBet = to
	r.LastAggressor = p.Seat
	return paid, nil
}

// seek moves toAct to the next pending player, starting offset places after
// from, or marks the round complete.
func (r *Round) seek(from, offset int) {
	n := len(r.players)
	if r.inHand() <= 1 {
		r.finish()
		return
	}
	canAct := 0
	var lone *Player
	for _, p := range r.players {
		if p.CanAct() {
			canAct++
			lone = p
		}
	}
	// A single player with chips behind who already matches the bet has
	// nobody left to bet against.
	if canAct == 0 || (canAct == 1 && lone.Bet >= r.CurrentBet) {
		r.finish()
		return
	}
	for k := offset; k < n+offset; k++ {
		j := (from + k) % n
		if r.players[j].CanAct() && r.pending[j] {
			r.toAct = j
			return
		}
	}
	r.finish()
}

func (r *Round) finish() {
	r.done = true
	r.toAct = -1
}

func (r *Round) inHand() int {
	n := 0
	for _, p := range r.players {
		if p.InHand() {
			n++
		}
	}
	return n
}

// LegalActions lists what seat may do now. It is empty when it is not the
// seat's turn.
func (r *Round) LegalActions(seat int) []LegalAction {
	if r.done || r.toAct < 0 || r.players[r.toAct].Seat != seat {
		return nil
	}
	i := r.toAct
	p := r.players[i]
	toCall := r.CurrentBet - p.Bet
	allInTo := p.Bet + p.Stack

	out := []LegalAction{{Kind: Fold}}
	if toCall <= 0 {
		out = append(out, LegalAction{Kind: Check})
	} else if toCall < p.Stack {
		out = append(out, LegalAction{Kind: Call, Min: toCall, Max: toCall})
	}
	if p.Stack == 0 {
		return out
	}
	canRaise := !r.closed[i]
	if minTo := r.CurrentBet + r.MinRaise; canRaise && allInTo > minTo {
		kind := Raise
		if r.CurrentBet == 0 {
			kind = Bet
		}
		out = append(out, LegalAction{Kind: kind, Min: minTo, Max: allInTo})
	}
	if canRaise || allInTo <= r.CurrentBet {
		out = append(out, LegalAction{Kind: AllInKind, Min: p.Stack, Max: p.Stack})
	}
	return out
}

// DefaultAction is what a player who runs out of time does: check when
// possible, otherwise fold.
func (r *Round) DefaultAction(seat int) Action {
	if r.ToCall(seat) == 0 {
		return Action{Kind: Check}
	}
	return Action{Kind: Fold}
}
