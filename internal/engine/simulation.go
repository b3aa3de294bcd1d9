package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/talgya/econsim/internal/economy"
	"github.com/talgya/econsim/internal/effectiveness"
	"github.com/talgya/econsim/internal/growth"
	"github.com/talgya/econsim/internal/simtime"
)

var (
	// ErrUnknownCountry is returned for country ids the simulation does not hold.
	ErrUnknownCountry = errors.New("unknown country")
	// ErrUnknownComponent is returned for component ids a country does not have.
	ErrUnknownComponent = errors.New("unknown component")
	// ErrDuplicateCountry is returned when adding a country id twice.
	ErrDuplicateCountry = errors.New("duplicate country")
)

// HistoryRingSize is how many history points the simulation keeps in memory.
const HistoryRingSize = 1000

// HistorySink receives history points after each recompute batch.
type HistorySink interface {
	AppendHistory(points []economy.HistoryPoint) error
}

// Country is one country's mutable record. mu serializes advances.
type Country struct {
	mu         sync.Mutex
	state      economy.State
	components []economy.Component
}

// Options tunes the scheduler.
type Options struct {
	Workers           int // parallel recomputes in RecomputeAll; default GOMAXPROCS
	OnDemand          int // concurrent single-country recomputes; default 4
	SnapshotCacheSize int // memoized effectiveness snapshots; default 1024
}

// Simulation holds every country and recomputes them against simulated time.
type Simulation struct {
	Calc   *growth.Calculator
	Scorer *effectiveness.Scorer
	Sink   HistorySink // optional

	workers   int
	onDemand  *semaphore.Weighted
	snapshots *lru.Cache

	mu        sync.RWMutex
	countries map[economy.CountryID]*Country
	lastTick  simtime.Tick

	historyMu sync.Mutex
	history   []economy.HistoryPoint // ring, oldest first once full
	pending   []economy.HistoryPoint // not yet handed to Sink

	advanced atomic.Int64
	failed   atomic.Int64
	flagged  atomic.Int64
}

// NewSimulation creates an empty simulation.
func NewSimulation(calc *growth.Calculator, scorer *effectiveness.Scorer, opts Options) (*Simulation, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.OnDemand <= 0 {
		opts.OnDemand = 4
	}
	if opts.SnapshotCacheSize <= 0 {
		opts.SnapshotCacheSize = 1024
	}
	cache, err := lru.New(opts.SnapshotCacheSize)
	if err != nil {
		return nil, fmt.Errorf("snapshot cache: %w", err)
	}
	return &Simulation{
		Calc:      calc,
		Scorer:    scorer,
		workers:   opts.Workers,
		onDemand:  semaphore.NewWeighted(int64(opts.OnDemand)),
		snapshots: cache,
		countries: make(map[economy.CountryID]*Country),
	}, nil
}

// AddCountry registers a country and its components.
func (s *Simulation) AddCountry(state economy.State, components []economy.Component) error {
	if err := state.Validate(s.Calc.Config().Limits); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.countries[state.CountryID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateCountry, state.CountryID)
	}
	comps := append([]economy.Component(nil), components...)
	s.countries[state.CountryID] = &Country{state: state, components: comps}
	if state.LastRecomputed > s.lastTick {
		s.lastTick = state.LastRecomputed
	}
	return nil
}

// LastTick returns the most recent tick any recompute ran at.
func (s *Simulation) LastTick() simtime.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTick
}

// SetLastTick records the clock position, e.g. after loading saved state.
func (s *Simulation) SetLastTick(t simtime.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t > s.lastTick {
		s.lastTick = t
	}
}

// IDs returns all country ids in sorted order.
func (s *Simulation) IDs() []economy.CountryID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]economy.CountryID, 0, len(s.countries))
	for id := range s.countries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of countries.
func (s *Simulation) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.countries)
}

func (s *Simulation) country(id economy.CountryID) (*Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.countries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCountry, id)
	}
	return c, nil
}

// Country returns copies of a country's state and components.
func (s *Simulation) Country(id economy.CountryID) (economy.State, []economy.Component, error) {
	c, err := s.country(id)
	if err != nil {
		return economy.State{}, nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, append([]economy.Component(nil), c.components...), nil
}

// States returns copies of every country's state, sorted by id.
func (s *Simulation) States() []economy.State {
	ids := s.IDs()
	out := make([]economy.State, 0, len(ids))
	for _, id := range ids {
		if st, _, err := s.Country(id); err == nil {
			out = append(out, st)
		}
	}
	return out
}

// Components returns every country's components, sorted by country then id.
func (s *Simulation) Components() []economy.Component {
	var out []economy.Component
	for _, id := range s.IDs() {
		_, comps, err := s.Country(id)
		if err != nil {
			continue
		}
		sort.Slice(comps, func(i, j int) bool { return comps[i].ID < comps[j].ID })
		out = append(out, comps...)
	}
	return out
}

// Effectiveness scores a country's current components.
func (s *Simulation) Effectiveness(id economy.CountryID) (effectiveness.Snapshot, error) {
	c, err := s.country(id)
	if err != nil {
		return effectiveness.Snapshot{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.snapshot(id, c.components), nil
}

// snapshot memoizes Score by a fingerprint of the component set, so any change
// to a component's type, active flag or score misses the cache.
func (s *Simulation) snapshot(id economy.CountryID, comps []economy.Component) effectiveness.Snapshot {
	key := fingerprint(id, comps)
	if v, ok := s.snapshots.Get(key); ok {
		return v.(effectiveness.Snapshot)
	}
	snap := s.Scorer.Score(comps)
	s.snapshots.Add(key, snap)
	return snap
}

func fingerprint(id economy.CountryID, comps []economy.Component) string {
	sorted := append([]economy.Component(nil), comps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	var b strings.Builder
	b.WriteString(string(id))
	for _, c := range sorted {
		b.WriteByte('|')
		b.WriteString(string(c.ID))
		b.WriteByte(':')
		b.WriteString(string(c.Type))
		b.WriteByte(':')
		b.WriteString(strconv.FormatBool(c.Active))
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(c.Effectiveness, 'g', -1, 64))
	}
	return b.String()
}

// SetComponentActive toggles a component and drops cached synergies for it.
func (s *Simulation) SetComponentActive(countryID economy.CountryID, componentID economy.ComponentID, active bool) (economy.Component, error) {
	c, err := s.country(countryID)
	if err != nil {
		return economy.Component{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.components {
		comp := &c.components[i]
		if comp.ID != componentID {
			continue
		}
		if comp.Active != active {
			comp.Active = active
			if s.Scorer.Cache != nil {
				s.Scorer.Cache.Invalidate(componentID)
			}
			slog.Info("component toggled", "country", countryID, "component", componentID, "type", comp.Type, "active", active)
		}
		return *comp, nil
	}
	return economy.Component{}, fmt.Errorf("%w: %s in %s", ErrUnknownComponent, componentID, countryID)
}

// Report summarizes one RecomputeAll batch.
type Report struct {
	Tick        simtime.Tick `json:"tick"`
	Countries   int          `json:"countries"`
	Advanced    int          `json:"advanced"`
	Failed      int          `json:"failed"`
	Flagged     int          `json:"flagged"`
	Transitions int          `json:"transitions"`
}

// RecomputeAll advances every country to now in parallel. A structural error
// for one country is logged and counted; it never stops the batch. The
// returned error is non-nil only if ctx ends or the history sink fails.
func (s *Simulation) RecomputeAll(ctx context.Context, now simtime.Tick) (Report, error) {
	ids := s.IDs()
	var advanced, failed, flagged, transitions atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := s.recompute(id, now)
			if err != nil {
				failed.Add(1)
				slog.Warn("recompute failed", "country", id, "error", err)
				return nil
			}
			advanced.Add(1)
			if out.Flags != 0 {
				flagged.Add(1)
			}
			if out.Tier.Started || out.Tier.Finalized {
				transitions.Add(1)
			}
			return nil
		})
	}
	waitErr := g.Wait()
	s.SetLastTick(now)

	rep := Report{
		Tick:        now,
		Countries:   len(ids),
		Advanced:    int(advanced.Load()),
		Failed:      int(failed.Load()),
		Flagged:     int(flagged.Load()),
		Transitions: int(transitions.Load()),
	}
	if err := s.Flush(); err != nil {
		return rep, err
	}
	return rep, waitErr
}

// Recompute advances a single country to now on demand. At most Options.OnDemand
// of these run at once; callers beyond that wait or give up with ctx.
func (s *Simulation) Recompute(ctx context.Context, id economy.CountryID, now simtime.Tick) (growth.Outcome, error) {
	if err := s.onDemand.Acquire(ctx, 1); err != nil {
		return growth.Outcome{}, err
	}
	defer s.onDemand.Release(1)

	out, err := s.recompute(id, now)
	if err != nil {
		return out, err
	}
	if err := s.Flush(); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Simulation) recompute(id economy.CountryID, now simtime.Tick) (growth.Outcome, error) {
	c, err := s.country(id)
	if err != nil {
		return growth.Outcome{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := now.Sub(c.state.LastRecomputed)
	out, err := s.Calc.Advance(c.state, elapsed, s.snapshot(id, c.components))
	if err != nil {
		s.failed.Add(1)
		return out, err
	}
	c.state = out.State
	if elapsed == 0 {
		return out, nil
	}

	s.advanced.Add(1)
	s.record(out.Point)
	if out.Flags != 0 {
		s.flagged.Add(1)
		slog.Debug("numeric guard engaged", "country", id, "flags", out.Flags.String())
	}
	if out.Tier.Started {
		if tr, ok := out.State.Transition(); ok {
			slog.Info("tier transition started", "country", id, "from", tr.From, "to", tr.To, "time", simtime.Format(now))
		}
	}
	if out.Tier.Finalized {
		slog.Info("tier transition finalized", "country", id, "tier", out.Tier.Tier, "time", simtime.Format(now))
	}
	return out, nil
}

func (s *Simulation) record(p economy.HistoryPoint) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.history = append(s.history, p)
	if len(s.history) > HistoryRingSize {
		s.history = s.history[len(s.history)-HistoryRingSize:]
	}
	if s.Sink != nil {
		s.pending = append(s.pending, p)
	}
}

// Flush hands buffered history points to the sink. Points stay buffered if the sink fails.
func (s *Simulation) Flush() error {
	if s.Sink == nil {
		return nil
	}
	s.historyMu.Lock()
	batch := s.pending
	s.pending = nil
	s.historyMu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	sort.SliceStable(batch, func(i, j int) bool {
		if batch[i].Tick != batch[j].Tick {
			return batch[i].Tick < batch[j].Tick
		}
		return batch[i].CountryID < batch[j].CountryID
	})
	if err := s.Sink.AppendHistory(batch); err != nil {
		s.historyMu.Lock()
		s.pending = append(batch, s.pending...)
		s.historyMu.Unlock()
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// History returns up to limit of the most recent in-memory points, newest
// first. An empty id returns points for every country.
func (s *Simulation) History(id economy.CountryID, limit int) []economy.HistoryPoint {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	var out []economy.HistoryPoint
	for i := len(s.history) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if id == "" || s.history[i].CountryID == id {
			out = append(out, s.history[i])
		}
	}
	return out
}

// Stats are lifetime counters for the simulation.
type Stats struct {
	Countries int   `json:"countries"`
	Advanced  int64 `json:"advanced"`
	Failed    int64 `json:"failed"`
	Flagged   int64 `json:"flagged"`
}

// Stats returns lifetime counters.
func (s *Simulation) Stats() Stats {
	return Stats{
		Countries: s.Len(),
		Advanced:  s.advanced.Load(),
		Failed:    s.failed.Load(),
		Flagged:   s.flagged.Load(),
	}
}
