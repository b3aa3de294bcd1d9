// Package persistence provides SQLite-based storage for country state,
// components and history.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/econsim/internal/economy"
	"github.com/talgya/econsim/internal/engine"
	"github.com/talgya/econsim/internal/simtime"
	"github.com/talgya/econsim/internal/tier"
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS countries (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		baseline_population REAL NOT NULL,
		baseline_gdp_per_capita REAL NOT NULL,
		baseline_at INTEGER NOT NULL,
		population REAL NOT NULL,
		gdp_per_capita REAL NOT NULL,
		total_gdp REAL NOT NULL,
		economic_tier TEXT NOT NULL,
		transition_from TEXT,
		transition_to TEXT,
		transition_started INTEGER,
		transition_window INTEGER,
		population_tier TEXT NOT NULL,
		local_growth_scalar REAL NOT NULL,
		last_recomputed INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS components (
		id TEXT PRIMARY KEY,
		country_id TEXT NOT NULL,
		type TEXT NOT NULL,
		effectiveness REAL NOT NULL,
		active INTEGER NOT NULL,
		implemented_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		country_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		population REAL NOT NULL,
		gdp_per_capita REAL NOT NULL,
		total_gdp REAL NOT NULL,
		economic_tier TEXT NOT NULL,
		population_tier TEXT NOT NULL,
		effectiveness REAL NOT NULL,
		flags INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_components_country ON components(country_id);
	CREATE INDEX IF NOT EXISTS idx_history_country_tick ON history(country_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// countryRow is the flat column layout of economy.State. The transition
// columns are NULL while the country is stable.
type countryRow struct {
	ID                   string         `db:"id"`
	Name                 string         `db:"name"`
	BaselinePopulation   float64        `db:"baseline_population"`
	BaselineGDPPerCapita float64        `db:"baseline_gdp_per_capita"`
	BaselineAt           int64          `db:"baseline_at"`
	Population           float64        `db:"population"`
	GDPPerCapita         float64        `db:"gdp_per_capita"`
	TotalGDP             float64        `db:"total_gdp"`
	EconomicTier         string         `db:"economic_tier"`
	TransitionFrom       sql.NullString `db:"transition_from"`
	TransitionTo         sql.NullString `db:"transition_to"`
	TransitionStarted    sql.NullInt64  `db:"transition_started"`
	TransitionWindow     sql.NullInt64  `db:"transition_window"`
	PopulationTier       string         `db:"population_tier"`
	LocalGrowthScalar    float64        `db:"local_growth_scalar"`
	LastRecomputed       int64          `db:"last_recomputed"`
}

func toRow(s economy.State) countryRow {
	r := countryRow{
		ID:                   string(s.CountryID),
		Name:                 s.Name,
		BaselinePopulation:   s.BaselinePopulation,
		BaselineGDPPerCapita: s.BaselineGDPPerCapita,
		BaselineAt:           int64(s.BaselineAt),
		Population:           s.Population,
		GDPPerCapita:         s.GDPPerCapita,
		TotalGDP:             s.TotalGDP,
		EconomicTier:         string(s.EconomicTier()),
		PopulationTier:       string(s.PopulationTier),
		LocalGrowthScalar:    s.LocalGrowthScalar,
		LastRecomputed:       int64(s.LastRecomputed),
	}
	if tr, ok := s.Transition(); ok {
		r.TransitionFrom = sql.NullString{String: string(tr.From), Valid: true}
		r.TransitionTo = sql.NullString{String: string(tr.To), Valid: true}
		r.TransitionStarted = sql.NullInt64{Int64: int64(tr.StartedAt), Valid: true}
		r.TransitionWindow = sql.NullInt64{Int64: int64(tr.Window), Valid: true}
	}
	return r
}

func (r countryRow) state() (economy.State, error) {
	s := economy.State{
		CountryID:            economy.CountryID(r.ID),
		Name:                 r.Name,
		BaselinePopulation:   r.BaselinePopulation,
		BaselineGDPPerCapita: r.BaselineGDPPerCapita,
		BaselineAt:           simtime.Tick(r.BaselineAt),
		Population:           r.Population,
		GDPPerCapita:         r.GDPPerCapita,
		TotalGDP:             r.TotalGDP,
		EconomicPhase:        tier.Stable{Tier: tier.ID(r.EconomicTier)},
		PopulationTier:       tier.ID(r.PopulationTier),
		LocalGrowthScalar:    r.LocalGrowthScalar,
		LastRecomputed:       simtime.Tick(r.LastRecomputed),
	}
	if r.TransitionTo.Valid {
		if !r.TransitionFrom.Valid || !r.TransitionStarted.Valid || !r.TransitionWindow.Valid {
			return s, fmt.Errorf("country %s: partial transition columns", r.ID)
		}
		s.EconomicPhase = tier.Transitioning{
			From:      tier.ID(r.TransitionFrom.String),
			To:        tier.ID(r.TransitionTo.String),
			StartedAt: simtime.Tick(r.TransitionStarted.Int64),
			Window:    simtime.Duration(r.TransitionWindow.Int64),
		}
	}
	return s, nil
}

// SaveCountries writes all country states to the database (full replace).
func (db *DB) SaveCountries(states []economy.State) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM countries"); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO countries
		(id, name, baseline_population, baseline_gdp_per_capita, baseline_at,
		 population, gdp_per_capita, total_gdp, economic_tier,
		 transition_from, transition_to, transition_started, transition_window,
		 population_tier, local_growth_scalar, last_recomputed)
		VALUES (:id, :name, :baseline_population, :baseline_gdp_per_capita, :baseline_at,
		 :population, :gdp_per_capita, :total_gdp, :economic_tier,
		 :transition_from, :transition_to, :transition_started, :transition_window,
		 :population_tier, :local_growth_scalar, :last_recomputed)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range states {
		if _, err := stmt.Exec(toRow(s)); err != nil {
			return fmt.Errorf("insert country %s: %w", s.CountryID, err)
		}
	}

	return tx.Commit()
}

// LoadCountries reads every country state, ordered by id.
func (db *DB) LoadCountries() ([]economy.State, error) {
	var rows []countryRow
	if err := db.conn.Select(&rows, "SELECT * FROM countries ORDER BY id"); err != nil {
		return nil, fmt.Errorf("select countries: %w", err)
	}
	states := make([]economy.State, 0, len(rows))
	for _, r := range rows {
		s, err := r.state()
		if err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, nil
}

// SaveComponents writes all components to the database (full replace).
func (db *DB) SaveComponents(components []economy.Component) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM components"); err != nil {
		return err
	}

	for _, c := range components {
		_, err := tx.NamedExec(`INSERT INTO components
			(id, country_id, type, effectiveness, active, implemented_at)
			VALUES (:id, :country_id, :type, :effectiveness, :active, :implemented_at)`, c)
		if err != nil {
			return fmt.Errorf("insert component %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// LoadComponents returns components grouped by country.
func (db *DB) LoadComponents() (map[economy.CountryID][]economy.Component, error) {
	var comps []economy.Component
	err := db.conn.Select(&comps,
		"SELECT id, country_id, type, effectiveness, active, implemented_at FROM components ORDER BY country_id, id")
	if err != nil {
		return nil, fmt.Errorf("select components: %w", err)
	}
	out := make(map[economy.CountryID][]economy.Component)
	for _, c := range comps {
		out[c.CountryID] = append(out[c.CountryID], c)
	}
	return out, nil
}

// AppendHistory appends history points. Points already stored are skipped.
func (db *DB) AppendHistory(points []economy.HistoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range points {
		_, err := tx.NamedExec(`INSERT OR IGNORE INTO history
			(id, country_id, tick, population, gdp_per_capita, total_gdp,
			 economic_tier, population_tier, effectiveness, flags)
			VALUES (:id, :country_id, :tick, :population, :gdp_per_capita, :total_gdp,
			 :economic_tier, :population_tier, :effectiveness, :flags)`, p)
		if err != nil {
			return fmt.Errorf("insert history %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// History returns the most recent N points for a country, newest first.
func (db *DB) History(countryID economy.CountryID, limit int) ([]economy.HistoryPoint, error) {
	var points []economy.HistoryPoint
	err := db.conn.Select(&points,
		`SELECT id, country_id, tick, population, gdp_per_capita, total_gdp,
		        economic_tier, population_tier, effectiveness, flags
		 FROM history WHERE country_id = ? ORDER BY tick DESC, id DESC LIMIT ?`,
		countryID, limit,
	)
	return points, err
}

// ClearHistory deletes every stored history point.
func (db *DB) ClearHistory() error {
	_, err := db.conn.Exec("DELETE FROM history")
	return err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// LastTick returns the saved clock position, or 0 if none was saved.
func (db *DB) LastTick() (simtime.Tick, error) {
	v, err := db.GetMeta("last_tick")
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	t, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse last_tick %q: %w", v, err)
	}
	return simtime.Tick(t), nil
}

// HasWorldState reports whether any countries have been saved.
func (db *DB) HasWorldState() bool {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM countries"); err != nil {
		return false
	}
	return n > 0
}

// SaveWorldState performs a full save of countries, components and the clock,
// then flushes buffered history.
func (db *DB) SaveWorldState(sim *engine.Simulation, tick simtime.Tick) error {
	states := sim.States()
	comps := sim.Components()
	slog.Info("saving world state", "countries", len(states), "components", len(comps), "tick", tick)

	if err := db.SaveCountries(states); err != nil {
		return fmt.Errorf("save countries: %w", err)
	}
	if err := db.SaveComponents(comps); err != nil {
		return fmt.Errorf("save components: %w", err)
	}
	if err := sim.Flush(); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	if err := db.SaveMeta("last_tick", strconv.FormatInt(int64(tick), 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("world state saved")
	return nil
}

// LoadWorldState rebuilds a simulation's countries from the database.
func (db *DB) LoadWorldState(sim *engine.Simulation) (simtime.Tick, error) {
	states, err := db.LoadCountries()
	if err != nil {
		return 0, err
	}
	comps, err := db.LoadComponents()
	if err != nil {
		return 0, err
	}
	for _, s := range states {
		if err := sim.AddCountry(s, comps[s.CountryID]); err != nil {
			return 0, fmt.Errorf("restore %s: %w", s.CountryID, err)
		}
	}
	tick, err := db.LastTick()
	if err != nil {
		return 0, err
	}
	sim.SetLastTick(tick)
	return tick, nil
}
