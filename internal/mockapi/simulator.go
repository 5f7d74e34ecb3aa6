package mockapi

import (
	"math/rand"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/tradebot/dashboard/internal/client"
)

// DefaultSchedule runs a simulation step every ten seconds.
const DefaultSchedule = "*/10 * * * * *"

// maxOpenPerUser caps simulated positions so closes keep up with opens.
const maxOpenPerUser = 3

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// drift moves price by a random amount between -3% and +4%.
func drift(r *lockedRand, price float64) float64 {
	return price * (1 + (r.Float64()*0.07 - 0.03))
}

// Simulator opens and closes trades for connected users on a cron schedule
// and pushes the matching feed events.
type Simulator struct {
	cron  *cron.Cron
	store *Store
	hub   *Hub
	rng   *lockedRand
	sched string
}

// NewSimulator creates a simulator. An empty schedule uses DefaultSchedule;
// a nil r seeds from the clock.
func NewSimulator(store *Store, hub *Hub, sched string, r *rand.Rand) *Simulator {
	if sched == "" {
		sched = DefaultSchedule
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{
		cron:  cron.New(cron.WithSeconds()),
		store: store,
		hub:   hub,
		rng:   &lockedRand{r: r},
		sched: sched,
	}
}

// Start schedules Step and starts the cron runner.
func (s *Simulator) Start() error {
	if _, err := s.cron.AddFunc(s.sched, s.Step); err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("schedule", s.sched).Msg("trade simulator started")
	return nil
}

// Stop halts the scheduler and waits for a running step to finish.
func (s *Simulator) Stop() {
	<-s.cron.Stop().Done()
}

// Step advances every connected user by one simulated trade event.
func (s *Simulator) Step() {
	for _, user := range s.hub.Users() {
		s.stepUser(user)
	}
}

func (s *Simulator) stepUser(user string) {
	active := s.store.Trades(user, client.StatusActive)
	if len(active) > 0 && (len(active) >= maxOpenPerUser || s.rng.Float64() < 0.5) {
		s.closeOne(user, active[s.rng.Intn(len(active))])
		return
	}
	s.openOne(user)
}

func (s *Simulator) openOne(user string) {
	sig := s.store.AnySignal(s.rng.Intn(1 << 16))
	entry := 1.0
	if sig.EntryPrice != nil {
		entry = drift(s.rng, *sig.EntryPrice)
	}
	tr, err := s.store.OpenTrade(user, sig.ID, sig.CoinPair, entry)
	if err != nil {
		log.Warn().Err(err).Str("user", user).Msg("simulator: open trade")
		return
	}
	log.Debug().Str("user", user).Str("symbol", tr.Symbol).Msg("simulator: opened trade")
	s.hub.Send(user, client.MsgTradeOpened, client.TradeOpened{Symbol: tr.Symbol, EntryPrice: entry})
}

func (s *Simulator) closeOne(user string, tr client.Trade) {
	if tr.EntryPrice == nil {
		return
	}
	exit := drift(s.rng, *tr.EntryPrice)
	status := client.StatusClosedTP
	if exit < *tr.EntryPrice {
		status = client.StatusClosedSL
	}
	closed, err := s.store.CloseTrade(user, tr.ID, exit, status)
	if err != nil {
		log.Warn().Err(err).Str("user", user).Msg("simulator: close trade")
		return
	}
	log.Debug().Str("user", user).Str("symbol", closed.Symbol).Float64("pl", *closed.NetProfitLoss).Msg("simulator: closed trade")
	s.hub.Send(user, client.MsgTradeClosed, client.TradeClosed{Symbol: closed.Symbol, NetProfitLoss: *closed.NetProfitLoss})
}
