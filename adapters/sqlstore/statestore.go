package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/item"
	"github.com/artpar/menagerie/domain/ledger"
	"github.com/artpar/menagerie/domain/livestock"
	"github.com/artpar/menagerie/domain/market"
	"github.com/artpar/menagerie/domain/module"
	"github.com/artpar/menagerie/domain/player"
	"github.com/artpar/menagerie/ports"
)

// StateStore implements ports.StateStore on a SQL database.
// Each Commit runs in one transaction guarded by the player's version.
type StateStore struct {
	db *sql.DB
	d  Dialect
}

// NewStateStore creates a state store over an open, migrated database.
func NewStateStore(db *sql.DB, d Dialect) *StateStore {
	return &StateStore{db: db, d: d}
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LoadPlayerState reads a player's full aggregate from one snapshot, so a
// concurrent commit is seen entirely or not at all.
func (s *StateStore) LoadPlayerState(ctx context.Context, playerID string) (player.Aggregate, error) {
	tx, err := s.db.BeginTx(ctx, s.d.ReadTx())
	if err != nil {
		return player.Aggregate{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	agg, err := s.load(ctx, tx, playerID)
	if err != nil {
		return player.Aggregate{}, err
	}
	return agg, tx.Commit()
}

func (s *StateStore) load(ctx context.Context, q queryer, playerID string) (player.Aggregate, error) {
	var (
		p       player.Player
		balance int64
		perks   string
		version int64
	)
	err := q.QueryRowContext(ctx, s.d.Rebind(`
		SELECT id, first_name, last_name, balance, current_turn, family, childhood, education,
		       starting_city, birth_month, perks, created_at, last_played_at, version
		FROM players WHERE id = ?
	`), playerID).Scan(&p.ID, &p.FirstName, &p.LastName, &balance, &p.CurrentTurn, &p.Background.Family, &p.Background.Childhood,
		&p.Background.Education, &p.Background.StartingCity, &p.Background.BirthMonth,
		&perks, &p.CreatedAt, &p.LastPlayedAt, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return player.Aggregate{}, fmt.Errorf("%w: player %s", fault.ErrNotFound, playerID)
	}
	if err != nil {
		return player.Aggregate{}, fmt.Errorf("load player: %w", err)
	}
	if p.Account, err = ledger.Open(balance); err != nil {
		return player.Aggregate{}, err
	}
	if err := json.Unmarshal([]byte(perks), &p.Perks); err != nil {
		return player.Aggregate{}, fmt.Errorf("decode perks: %w", err)
	}

	agg := player.Aggregate{
		Player:    p,
		Modules:   make(map[module.Kind]module.Module),
		Livestock: make(map[string]livestock.Livestock),
		Items:     make(map[string]item.Item),
		Version:   version,
	}

	if err := s.loadModules(ctx, q, &agg); err != nil {
		return player.Aggregate{}, err
	}
	if err := s.loadLivestock(ctx, q, &agg); err != nil {
		return player.Aggregate{}, err
	}
	if err := s.loadItems(ctx, q, &agg); err != nil {
		return player.Aggregate{}, err
	}
	if err := s.loadListings(ctx, q, &agg); err != nil {
		return player.Aggregate{}, err
	}
	return agg, nil
}

func (s *StateStore) loadModules(ctx context.Context, q queryer, agg *player.Aggregate) error {
	rows, err := q.QueryContext(ctx, s.d.Rebind(`
		SELECT kind, level, last_event_turn FROM modules WHERE player_id = ?
	`), agg.Player.ID)
	if err != nil {
		return fmt.Errorf("load modules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m module.Module
		if err := rows.Scan(&m.Kind, &m.Level, &m.LastEventTurn); err != nil {
			return fmt.Errorf("scan module: %w", err)
		}
		agg.Modules[m.Kind] = m
	}
	return rows.Err()
}

func (s *StateStore) loadLivestock(ctx context.Context, q queryer, agg *player.Aggregate) error {
	rows, err := q.QueryContext(ctx, s.d.Rebind(`
		SELECT id, species, name_key, family_key, nation_key, city_key, origin_key, bloodtype_key,
		       zodiac_key, rank_key, quality, height, weight, birth_turn, father_id, mother_id,
		       location, acquire_turn, age, affection
		FROM livestock WHERE player_id = ?
	`), agg.Player.ID)
	if err != nil {
		return fmt.Errorf("load livestock: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		l := livestock.Livestock{OwnerID: agg.Player.ID}
		if err := rows.Scan(&l.ID, &l.Species, &l.NameKey, &l.FamilyKey, &l.NationKey, &l.CityKey,
			&l.OriginKey, &l.BloodtypeKey, &l.ZodiacKey, &l.RankKey, &l.Quality, &l.Height, &l.Weight, &l.BirthTurn, &l.FatherID, &l.MotherID,
			&l.Location, &l.AcquireTurn, &l.Age, &l.Affection); err != nil {
			return fmt.Errorf("scan livestock: %w", err)
		}
		agg.Livestock[l.ID] = l
	}
	return rows.Err()
}

func (s *StateStore) loadItems(ctx context.Context, q queryer, agg *player.Aggregate) error {
	rows, err := q.QueryContext(ctx, s.d.Rebind(`
		SELECT id, item_type, category, name_key, description_key, quantity, quality, base_value,
		       source_livestock_id
		FROM items WHERE player_id = ?
	`), agg.Player.ID)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		it := item.Item{OwnerID: agg.Player.ID}
		if err := rows.Scan(&it.ID, &it.Type, &it.Category, &it.NameKey, &it.DescriptionKey,
			&it.Quantity, &it.Quality, &it.BaseValue, &it.SourceLivestockID); err != nil {
			return fmt.Errorf("scan item: %w", err)
		}
		agg.Items[it.ID] = it
	}
	return rows.Err()
}

func (s *StateStore) loadListings(ctx context.Context, q queryer, agg *player.Aggregate) error {
	rows, err := q.QueryContext(ctx, s.d.Rebind(`
		SELECT id, price, livestock FROM listings WHERE player_id = ? ORDER BY position
	`), agg.Player.ID)
	if err != nil {
		return fmt.Errorf("load listings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l       market.Listing
			payload string
		)
		if err := rows.Scan(&l.ID, &l.Price, &payload); err != nil {
			return fmt.Errorf("scan listing: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &l.Livestock); err != nil {
			return fmt.Errorf("decode listing %s: %w", l.ID, err)
		}
		agg.Listings = append(agg.Listings, l)
	}
	return rows.Err()
}

// Create inserts a brand-new aggregate.
func (s *StateStore) Create(ctx context.Context, a player.Aggregate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, s.d.Rebind(`SELECT 1 FROM players WHERE id = ?`), a.Player.ID).Scan(&exists)
	switch {
	case err == nil:
		return fmt.Errorf("%w: player %s already exists", fault.ErrConflict, a.Player.ID)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check player: %w", err)
	}

	perks, err := json.Marshal(nonNil(a.Player.Perks))
	if err != nil {
		return err
	}
	p := a.Player
	_, err = tx.ExecContext(ctx, s.d.Rebind(`
		INSERT INTO players (id, first_name, last_name, balance, current_turn, family, childhood,
		                     education, starting_city, birth_month, perks, created_at, last_played_at,
		                     version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), p.ID, p.FirstName, p.LastName, p.Balance(), p.CurrentTurn, p.Background.Family, p.Background.Childhood,
		p.Background.Education, p.Background.StartingCity, p.Background.BirthMonth,
		string(perks), p.CreatedAt.UTC(), p.LastPlayedAt.UTC(), a.Version)
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}

	for _, m := range a.Modules {
		if err := s.upsertModule(ctx, tx, p.ID, m); err != nil {
			return err
		}
	}
	for _, l := range a.Livestock {
		if err := s.upsertLivestock(ctx, tx, p.ID, l); err != nil {
			return err
		}
	}
	for _, it := range a.Items {
		if err := s.upsertItem(ctx, tx, p.ID, it); err != nil {
			return err
		}
	}
	if err := s.replaceListings(ctx, tx, p.ID, a.Listings); err != nil {
		return err
	}
	return tx.Commit()
}

// Commit writes the changed rows and the ledger journal in one transaction.
func (s *StateStore) Commit(ctx context.Context, c player.Commit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	a := c.Aggregate
	p := a.Player
	res, err := tx.ExecContext(ctx, s.d.Rebind(`
		UPDATE players
		SET balance = ?, current_turn = ?, last_played_at = ?, version = ?
		WHERE id = ? AND version = ?
	`), p.Balance(), p.CurrentTurn, p.LastPlayedAt.UTC(), a.Version, p.ID, c.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.missOrConflict(ctx, tx, p.ID, c.ExpectedVersion)
	}

	seen := make(map[player.Change]bool, len(c.Changes))
	for _, ch := range c.Changes {
		key := player.Change{Entity: ch.Entity, ID: ch.ID}
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := s.applyChange(ctx, tx, a, ch); err != nil {
			return err
		}
	}

	for _, e := range c.Entries {
		_, err := tx.ExecContext(ctx, s.d.Rebind(`
			INSERT INTO ledger_entries (player_id, turn, direction, amount, reason, balance_after, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`), p.ID, p.CurrentTurn, string(e.Direction), e.Amount, e.Reason, e.BalanceAfter, p.LastPlayedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
	}

	return tx.Commit()
}

// applyChange writes the final state of the changed entity: present rows
// are upserted, absent ones deleted.
func (s *StateStore) applyChange(ctx context.Context, tx *sql.Tx, a player.Aggregate, ch player.Change) error {
	pid := a.Player.ID
	switch ch.Entity {
	case player.EntityPlayer:
		return nil
	case player.EntityModule:
		return s.upsertModule(ctx, tx, pid, a.Modules[module.Kind(ch.ID)])
	case player.EntityLivestock:
		if l, ok := a.Livestock[ch.ID]; ok {
			return s.upsertLivestock(ctx, tx, pid, l)
		}
		return s.exec(ctx, tx, "delete livestock", `DELETE FROM livestock WHERE player_id = ? AND id = ?`, pid, ch.ID)
	case player.EntityItem:
		if it, ok := a.Items[ch.ID]; ok {
			return s.upsertItem(ctx, tx, pid, it)
		}
		return s.exec(ctx, tx, "delete item", `DELETE FROM items WHERE player_id = ? AND id = ?`, pid, ch.ID)
	case player.EntityListings:
		return s.replaceListings(ctx, tx, pid, a.Listings)
	default:
		return fmt.Errorf("unknown change entity %q", ch.Entity)
	}
}

func (s *StateStore) missOrConflict(ctx context.Context, q queryer, id string, expected int64) error {
	var version int64
	err := q.QueryRowContext(ctx, s.d.Rebind(`SELECT version FROM players WHERE id = ?`), id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: player %s", fault.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	return fmt.Errorf("%w: player %s at version %d, commit expects %d", fault.ErrConflict, id, version, expected)
}

func (s *StateStore) upsertModule(ctx context.Context, q queryer, pid string, m module.Module) error {
	return s.exec(ctx, q, "upsert module", `
		INSERT INTO modules (player_id, kind, level, last_event_turn)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (player_id, kind) DO UPDATE SET
			level = excluded.level,
			last_event_turn = excluded.last_event_turn
	`, pid, string(m.Kind), m.Level, m.LastEventTurn)
}

func (s *StateStore) upsertLivestock(ctx context.Context, q queryer, pid string, l livestock.Livestock) error {
	return s.exec(ctx, q, "upsert livestock", `
		INSERT INTO livestock (id, player_id, species, name_key, family_key, nation_key, city_key,
		                       origin_key, bloodtype_key, zodiac_key, rank_key, quality, height,
		                       weight, birth_turn, father_id, mother_id, location, acquire_turn, age,
		                       affection)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (player_id, id) DO UPDATE SET
			location = excluded.location,
			acquire_turn = excluded.acquire_turn,
			age = excluded.age,
			affection = excluded.affection
	`, l.ID, pid, l.Species, l.NameKey, l.FamilyKey, l.NationKey, l.CityKey, l.OriginKey, l.BloodtypeKey, l.ZodiacKey, l.RankKey,
		l.Quality, l.Height, l.Weight, l.BirthTurn, l.FatherID, l.MotherID,
		string(l.Location), l.AcquireTurn, l.Age, l.Affection)
}

func (s *StateStore) upsertItem(ctx context.Context, q queryer, pid string, it item.Item) error {
	return s.exec(ctx, q, "upsert item", `
		INSERT INTO items (player_id, id, item_type, category, name_key, description_key, quantity,
		                   quality, base_value, source_livestock_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (player_id, id) DO UPDATE SET
			quantity = excluded.quantity
	`, pid, it.ID, it.Type, it.Category, it.NameKey, it.DescriptionKey, it.Quantity,
		it.Quality, it.BaseValue, it.SourceLivestockID)
}

func (s *StateStore) replaceListings(ctx context.Context, q queryer, pid string, ls []market.Listing) error {
	if err := s.exec(ctx, q, "clear listings", `DELETE FROM listings WHERE player_id = ?`, pid); err != nil {
		return err
	}
	for i, l := range ls {
		payload, err := json.Marshal(l.Livestock)
		if err != nil {
			return fmt.Errorf("encode listing %s: %w", l.ID, err)
		}
		if err := s.exec(ctx, q, "insert listing", `
			INSERT INTO listings (player_id, position, id, price, livestock)
			VALUES (?, ?, ?, ?, ?)
		`, pid, i, l.ID, l.Price, string(payload)); err != nil {
			return err
		}
	}
	return nil
}

// Journal returns a player's ledger entries, oldest first.
func (s *StateStore) Journal(ctx context.Context, playerID string) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, s.d.Rebind(`
		SELECT direction, amount, reason, balance_after
		FROM ledger_entries WHERE player_id = ? ORDER BY seq
	`), playerID)
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.Direction, &e.Amount, &e.Reason, &e.BalanceAfter); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListPlayers returns every player id, sorted.
func (s *StateStore) ListPlayers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM players ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *StateStore) exec(ctx context.Context, q queryer, what, query string, args ...any) error {
	if _, err := q.ExecContext(ctx, s.d.Rebind(query), args...); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Ensure interface compliance.
var (
	_ ports.StateStore    = (*StateStore)(nil)
	_ ports.PlayerLister  = (*StateStore)(nil)
	_ ports.JournalReader = (*StateStore)(nil)
)
