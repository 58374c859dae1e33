package player

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/item"
	"github.com/artpar/menagerie/domain/ledger"
	"github.com/artpar/menagerie/domain/livestock"
	"github.com/artpar/menagerie/domain/module"
)

// Background holds the character-creation choices.
type Background struct {
	Family       string
	Childhood    string
	Education    string
	StartingCity string
	BirthMonth   int // 1..12
}

// MaxNameLength bounds each part of a character name, in runes.
const MaxNameLength = 50

// Character is everything chosen at character creation.
type Character struct {
	FirstName  string
	LastName   string
	Background Background
}

// Choice is the effect of one creation option.
type Choice struct {
	Bonus int64  // added to starting money, may be negative
	Perk  string // i18n key, optional
}

// CreationConfig holds the character-creation tables.
type CreationConfig struct {
	BaseMoney    int64
	MinMoney     int64
	Family       map[string]Choice
	Childhood    map[string]Choice
	Education    map[string]Choice
	StartingCity map[string]Choice
	BirthMonths  [12]Choice
}

// StartingFunds returns the opening balance and perks for bg:
// max(MinMoney, BaseMoney + all bonuses).
// Unknown choices fail with ErrInvalidArgument.
func StartingFunds(cfg CreationConfig, bg Background) (int64, []string, error) {
	p, err := PreviewStartingFunds(cfg, bg)
	if err != nil {
		return 0, nil, err
	}
	return p.StartingMoney, p.Perks, nil
}

// Preview is what a set of creation choices would yield.
type Preview struct {
	StartingMoney int64
	MoneyBonus    int64 // sum of the choice bonuses, before the MinMoney floor
	Perks         []string
}

// PreviewStartingFunds computes the starting attributes for bg without
// creating anything.
// This is a PURE function.
func PreviewStartingFunds(cfg CreationConfig, bg Background) (Preview, error) {
	if bg.BirthMonth < 1 || bg.BirthMonth > 12 {
		return Preview{}, fmt.Errorf("%w: birth month %d outside 1..12", fault.ErrInvalidArgument, bg.BirthMonth)
	}

	picks := []struct {
		field string
		value string
		table map[string]Choice
	}{
		{"family_background", bg.Family, cfg.Family},
		{"childhood_experience", bg.Childhood, cfg.Childhood},
		{"education_background", bg.Education, cfg.Education},
		{"starting_city", bg.StartingCity, cfg.StartingCity},
	}

	var p Preview
	for _, pk := range picks {
		c, ok := pk.table[pk.value]
		if !ok {
			return Preview{}, unknownChoice(pk.field, pk.value, pk.table)
		}
		p.MoneyBonus += c.Bonus
		if c.Perk != "" {
			p.Perks = append(p.Perks, c.Perk)
		}
	}
	month := cfg.BirthMonths[bg.BirthMonth-1]
	p.MoneyBonus += month.Bonus
	if month.Perk != "" {
		p.Perks = append(p.Perks, month.Perk)
	}

	p.StartingMoney = max(cfg.BaseMoney+p.MoneyBonus, cfg.MinMoney)
	return p, nil
}

// Options lists the choices character creation accepts.
type Options struct {
	Families       []string
	Childhoods     []string
	Educations     []string
	StartingCities []string
	BirthMonths    []int
}

// Options returns the sorted choice keys of cfg.
func (cfg CreationConfig) Options() Options {
	months := make([]int, len(cfg.BirthMonths))
	for i := range months {
		months[i] = i + 1
	}
	return Options{
		Families:       slices.Sorted(maps.Keys(cfg.Family)),
		Childhoods:     slices.Sorted(maps.Keys(cfg.Childhood)),
		Educations:     slices.Sorted(maps.Keys(cfg.Education)),
		StartingCities: slices.Sorted(maps.Keys(cfg.StartingCity)),
		BirthMonths:    months,
	}
}

func unknownChoice(field, value string, table map[string]Choice) error {
	known := slices.Sorted(maps.Keys(table))
	if s := fault.Nearest(value, known); s != "" {
		return fmt.Errorf("%w: unknown %s %q (did you mean %q?)", fault.ErrInvalidArgument, field, value, s)
	}
	return fmt.Errorf("%w: unknown %s %q", fault.ErrInvalidArgument, field, value)
}

// New creates the aggregate of a fresh player: starting funds, every module
// at level 0, turn 1, no holdings and an empty market.
func New(id string, c Character, cfg CreationConfig, now time.Time) (Aggregate, error) {
	if id == "" {
		return Aggregate{}, fmt.Errorf("%w: empty player id", fault.ErrInvalidArgument)
	}
	first, err := characterName("first_name", c.FirstName)
	if err != nil {
		return Aggregate{}, err
	}
	last, err := characterName("last_name", c.LastName)
	if err != nil {
		return Aggregate{}, err
	}
	bg := c.Background
	money, perks, err := StartingFunds(cfg, bg)
	if err != nil {
		return Aggregate{}, err
	}
	acct, err := ledger.Open(money)
	if err != nil {
		return Aggregate{}, err
	}

	return Aggregate{
		Player: Player{
			ID:           id,
			FirstName:    first,
			LastName:     last,
			Account:      acct,
			CurrentTurn:  1,
			Background:   bg,
			Perks:        perks,
			CreatedAt:    now,
			LastPlayedAt: now,
		},
		Modules:   module.NewSet(),
		Livestock: make(map[string]livestock.Livestock),
		Items:     make(map[string]item.Item),
	}, nil
}

func characterName(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return "", fault.Input(field, "is required")
	case utf8.RuneCountInString(v) > MaxNameLength:
		return "", fault.Input(field, "is longer than %d characters", MaxNameLength)
	}
	return v, nil
}
