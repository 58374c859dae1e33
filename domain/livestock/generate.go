package livestock

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/module"
)

// Species describes one kind of creature the generator can produce.
type Species struct {
	Key            string
	NameKey        string
	FamilyKey      string
	MinMarketLevel int
	Weight         int // relative pick weight within the pool
	BasePrice      int64
	MinHeight      float64
	MaxHeight      float64
	MinWeight      float64
	MaxWeight      float64
}

// QualityBand is the quality distribution at one market level.
type QualityBand struct {
	Mean   float64
	Spread float64
}

// RankThreshold maps a minimum quality to a rank key.
type RankThreshold struct {
	MinQuality float64
	Key        string
}

// GeneratorConfig is the static configuration of the entity generator.
type GeneratorConfig struct {
	Species      []Species
	QualityBands [module.MaxLevel + 1]QualityBand
	Origins      []string
	Nations      []string
	Cities       []string
	Bloodtypes   []string
	Zodiacs      []string
	Ranks        []RankThreshold // highest MinQuality first
	BreedSpread  float64
}

// LookupSpecies returns the species with key.
func (c GeneratorConfig) LookupSpecies(key string) (Species, bool) {
	for _, s := range c.Species {
		if s.Key == key {
			return s, true
		}
	}
	return Species{}, false
}

// SpeciesKeys returns every configured species key.
func (c GeneratorConfig) SpeciesKeys() []string {
	keys := make([]string, len(c.Species))
	for i, s := range c.Species {
		keys[i] = s.Key
	}
	return keys
}

// Pool returns the species available at marketLevel, in configured order.
func (c GeneratorConfig) Pool(marketLevel int) []Species {
	var pool []Species
	for _, s := range c.Species {
		if s.MinMarketLevel <= marketLevel && s.Weight > 0 {
			pool = append(pool, s)
		}
	}
	return pool
}

// Generate produces one unowned, unassigned livestock for marketLevel.
// Identical inputs produce identical output, including the ID.
// This is a PURE function.
func Generate(cfg GeneratorConfig, marketLevel int, seed uint64, birthTurn int) (Livestock, error) {
	if marketLevel < 1 || marketLevel > module.MaxLevel {
		return Livestock{}, fault.Config("generator.market_level", "level %d outside [1,%d]", marketLevel, module.MaxLevel)
	}
	pool := cfg.Pool(marketLevel)
	if len(pool) == 0 {
		return Livestock{}, fault.Config("species", "no species available at market level %d", marketLevel)
	}

	src := newSource(seed)
	id, err := uuid.NewRandomFromReader(src)
	if err != nil {
		return Livestock{}, fmt.Errorf("generate id: %w", err)
	}
	r := rand.New(src)

	sp := pickSpecies(r, pool)
	band := cfg.QualityBands[marketLevel]
	quality := roundTo(clamp01(band.Mean+(r.Float64()*2-1)*band.Spread), 3)

	l := Livestock{
		ID:           id.String(),
		Species:      sp.Key,
		NameKey:      sp.NameKey,
		FamilyKey:    sp.FamilyKey,
		OriginKey:    pick(r, cfg.Origins),
		BloodtypeKey: pick(r, cfg.Bloodtypes),
		ZodiacKey:    pick(r, cfg.Zodiacs),
		RankKey:      RankFor(cfg.Ranks, quality),
		Quality:      quality,
		Height:       roundTo(uniform(r, sp.MinHeight, sp.MaxHeight), 1),
		Weight:       roundTo(uniform(r, sp.MinWeight, sp.MaxWeight), 1),
		BirthTurn:    birthTurn,
		Location:     Unassigned,
	}
	// Drawn last so the earlier attributes of a seed stay stable.
	l.NationKey = pick(r, cfg.Nations)
	l.CityKey = pick(r, cfg.Cities)
	return l, nil
}

// Breed produces the offspring of father and mother born at turn.
// The parents must be distinct, of the same species and not born after turn.
// This is a PURE function.
func Breed(cfg GeneratorConfig, father, mother Livestock, seed uint64, turn int) (Livestock, error) {
	if father.ID == "" || mother.ID == "" || father.ID == mother.ID {
		return Livestock{}, fmt.Errorf("%w: breeding needs two distinct parents", fault.ErrInvalidArgument)
	}
	if father.Species != mother.Species {
		return Livestock{}, fmt.Errorf("%w: cannot breed %s with %s", fault.ErrInvalidArgument, father.Species, mother.Species)
	}
	if turn <= father.BirthTurn || turn <= mother.BirthTurn {
		return Livestock{}, fmt.Errorf("%w: offspring must be born after both parents", fault.ErrInvalidArgument)
	}

	src := newSource(seed)
	id, err := uuid.NewRandomFromReader(src)
	if err != nil {
		return Livestock{}, fmt.Errorf("generate id: %w", err)
	}
	r := rand.New(src)

	mean := (father.Quality + mother.Quality) / 2
	quality := roundTo(clamp01(mean+(r.Float64()*2-1)*cfg.BreedSpread), 3)

	return Livestock{
		ID:           id.String(),
		Species:      mother.Species,
		NameKey:      mother.NameKey,
		FamilyKey:    mother.FamilyKey,
		NationKey:    mother.NationKey,
		CityKey:      mother.CityKey,
		OriginKey:    mother.OriginKey,
		BloodtypeKey: pickOf(r, father.BloodtypeKey, mother.BloodtypeKey),
		ZodiacKey:    pick(r, cfg.Zodiacs),
		RankKey:      RankFor(cfg.Ranks, quality),
		Quality:      quality,
		Height:       roundTo((father.Height+mother.Height)/2, 1),
		Weight:       roundTo((father.Weight+mother.Weight)/2, 1),
		BirthTurn:    turn,
		FatherID:     father.ID,
		MotherID:     mother.ID,
		Location:     Unassigned,
	}, nil
}

// Price is floor(basePrice * (0.5 + quality)).
func Price(basePrice int64, quality float64) int64 {
	return int64(math.Floor(float64(basePrice) * (0.5 + quality)))
}

// RankFor returns the key of the first threshold quality reaches.
func RankFor(ranks []RankThreshold, quality float64) string {
	for _, r := range ranks {
		if quality >= r.MinQuality {
			return r.Key
		}
	}
	return ""
}

// newSource expands seed into a ChaCha8 stream. The same stream feeds the
// UUID and every attribute draw.
func newSource(seed uint64) *rand.ChaCha8 {
	var key [32]byte
	for i, salt := range []string{"a", "b", "c", "d"} {
		binary.LittleEndian.PutUint64(key[i*8:], seedWord(seed, salt))
	}
	return rand.NewChaCha8(key)
}

func seedWord(seed uint64, salt string) uint64 {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%d:%s", seed, salt)
	return h.Sum64()
}

func pickSpecies(r *rand.Rand, pool []Species) Species {
	total := 0
	for _, s := range pool {
		total += s.Weight
	}
	n := r.IntN(total)
	for _, s := range pool {
		if n < s.Weight {
			return s
		}
		n -= s.Weight
	}
	return pool[len(pool)-1]
}

func pick(r *rand.Rand, keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	return keys[r.IntN(len(keys))]
}

func pickOf(r *rand.Rand, a, b string) string {
	if r.IntN(2) == 0 {
		return a
	}
	return b
}

func uniform(r *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + r.Float64()*(hi-lo)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
