package http

import (
	"sort"
	"strconv"

	"github.com/artpar/menagerie/domain/item"
	"github.com/artpar/menagerie/domain/ledger"
	"github.com/artpar/menagerie/domain/livestock"
	"github.com/artpar/menagerie/domain/market"
	"github.com/artpar/menagerie/domain/module"
	"github.com/artpar/menagerie/domain/player"
	"github.com/artpar/menagerie/domain/turn"
	"github.com/artpar/menagerie/pkg/jsonapi"
)

// Attribute views keep the wire format in snake_case and independent of the
// domain structs.

type moduleView struct {
	Kind          string `json:"kind"`
	Level         int    `json:"level"`
	LastEventTurn int    `json:"last_event_turn"`
}

type livestockView struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"owner_id,omitempty"`
	Species     string  `json:"species"`
	NameKey     string  `json:"name_key"`
	FamilyKey   string  `json:"family_key,omitempty"`
	NationKey   string  `json:"nation_key,omitempty"`
	CityKey     string  `json:"city_key,omitempty"`
	OriginKey   string  `json:"origin_key"`
	Bloodtype   string  `json:"bloodtype_key"`
	Zodiac      string  `json:"zodiac_key"`
	Rank        string  `json:"rank_key"`
	Quality     float64 `json:"quality"`
	Height      float64 `json:"height"`
	Weight      float64 `json:"weight"`
	BirthTurn   int     `json:"birth_turn"`
	FatherID    string  `json:"father_id,omitempty"`
	MotherID    string  `json:"mother_id,omitempty"`
	Location    string  `json:"location"`
	AcquireTurn int     `json:"acquire_turn"`
	Age         int     `json:"age"`
	Affection   int     `json:"affection"`
}

type itemView struct {
	ID                string  `json:"id"`
	Type              string  `json:"type"`
	Category          string  `json:"category"`
	NameKey           string  `json:"name_key"`
	DescriptionKey    string  `json:"description_key"`
	Quantity          int     `json:"quantity"`
	Quality           float64 `json:"quality"`
	BaseValue         int64   `json:"base_value"`
	SourceLivestockID string  `json:"source_livestock_id,omitempty"`
}

type listingView struct {
	ID        string        `json:"id"`
	Price     int64         `json:"price"`
	Livestock livestockView `json:"livestock"`
}

type eventView struct {
	Module      string `json:"module"`
	Key         string `json:"key"`
	Amount      int64  `json:"amount"`
	LivestockID string `json:"livestock_id,omitempty"`
	ItemID      string `json:"item_id,omitempty"`
}

func toModuleView(m module.Module) moduleView {
	return moduleView{Kind: string(m.Kind), Level: m.Level, LastEventTurn: m.LastEventTurn}
}

func toLivestockView(l livestock.Livestock) livestockView {
	return livestockView{
		ID:          l.ID,
		OwnerID:     l.OwnerID,
		Species:     l.Species,
		NameKey:     l.NameKey,
		FamilyKey:   l.FamilyKey,
		NationKey:   l.NationKey,
		CityKey:     l.CityKey,
		OriginKey:   l.OriginKey,
		Bloodtype:   l.BloodtypeKey,
		Zodiac:      l.ZodiacKey,
		Rank:        l.RankKey,
		Quality:     l.Quality,
		Height:      l.Height,
		Weight:      l.Weight,
		BirthTurn:   l.BirthTurn,
		FatherID:    l.FatherID,
		MotherID:    l.MotherID,
		Location:    string(l.Location),
		AcquireTurn: l.AcquireTurn,
		Age:         l.Age,
		Affection:   l.Affection,
	}
}

func toItemView(it item.Item) itemView {
	return itemView{
		ID:                it.ID,
		Type:              it.Type,
		Category:          it.Category,
		NameKey:           it.NameKey,
		DescriptionKey:    it.DescriptionKey,
		Quantity:          it.Quantity,
		Quality:           it.Quality,
		BaseValue:         it.BaseValue,
		SourceLivestockID: it.SourceLivestockID,
	}
}

func toListingViews(ls []market.Listing) []listingView {
	out := make([]listingView, 0, len(ls))
	for _, l := range ls {
		out = append(out, listingView{ID: l.ID, Price: l.Price, Livestock: toLivestockView(l.Livestock)})
	}
	return out
}

func playerPath(id string) string {
	return PathPrefix + "/" + id
}

func playerResource(a player.Aggregate) jsonapi.Resource {
	p := a.Player

	modules := make([]moduleView, 0, len(module.Kinds))
	for _, kind := range module.Kinds {
		if m, ok := a.Modules[kind]; ok {
			modules = append(modules, toModuleView(m))
		}
	}

	herd := make([]livestockView, 0, len(a.Livestock))
	for _, l := range a.Livestock {
		herd = append(herd, toLivestockView(l))
	}
	sort.Slice(herd, func(i, j int) bool { return herd[i].ID < herd[j].ID })

	items := make([]itemView, 0, len(a.Items))
	for _, it := range a.ItemsSorted() {
		items = append(items, toItemView(it))
	}

	return jsonapi.NewResource("players", p.ID).
		Attr("first_name", p.FirstName).
		Attr("last_name", p.LastName).
		Attr("balance", p.Balance()).
		Attr("current_turn", p.CurrentTurn).
		Attr("perks", append([]string{}, p.Perks...)).
		Attr("background", map[string]any{
			"family":        p.Background.Family,
			"childhood":     p.Background.Childhood,
			"education":     p.Background.Education,
			"starting_city": p.Background.StartingCity,
			"birth_month":   p.Background.BirthMonth,
		}).
		Attr("created_at", p.CreatedAt).
		Attr("last_played_at", p.LastPlayedAt).
		Attr("modules", modules).
		Attr("livestock", herd).
		Attr("items", items).
		Attr("listings", toListingViews(a.Listings)).
		Self(playerPath(p.ID)).
		Meta("version", a.Version).
		Build()
}

func creationOptionsResource(o player.Options) jsonapi.Resource {
	return jsonapi.NewResource("creation_options", "current").
		Attr("family_backgrounds", o.Families).
		Attr("childhood_experiences", o.Childhoods).
		Attr("education_backgrounds", o.Educations).
		Attr("starting_cities", o.StartingCities).
		Attr("birth_months", o.BirthMonths).
		Build()
}

func previewResource(p player.Preview) jsonapi.Resource {
	return jsonapi.NewResource("creation_previews", "preview").
		Attr("starting_money", p.StartingMoney).
		Attr("money_bonus", p.MoneyBonus).
		Attr("perks", append([]string{}, p.Perks...)).
		Build()
}

func moduleResource(m module.Module) jsonapi.Resource {
	return jsonapi.NewResource("modules", string(m.Kind)).
		Attr("level", m.Level).
		Attr("last_event_turn", m.LastEventTurn).
		Build()
}

func livestockResource(l livestock.Livestock) jsonapi.Resource {
	return jsonapi.NewResource("livestock", l.ID).
		OptionalAttr("owner_id", l.OwnerID).
		Attr("species", l.Species).
		Attr("name_key", l.NameKey).
		OptionalAttr("family_key", l.FamilyKey).
		OptionalAttr("nation_key", l.NationKey).
		OptionalAttr("city_key", l.CityKey).
		Attr("origin_key", l.OriginKey).
		Attr("bloodtype_key", l.BloodtypeKey).
		Attr("zodiac_key", l.ZodiacKey).
		Attr("rank_key", l.RankKey).
		Attr("quality", l.Quality).
		Attr("height", l.Height).
		Attr("weight", l.Weight).
		Attr("birth_turn", l.BirthTurn).
		OptionalAttr("father_id", l.FatherID).
		OptionalAttr("mother_id", l.MotherID).
		Attr("location", string(l.Location)).
		Attr("acquire_turn", l.AcquireTurn).
		Attr("age", l.Age).
		Attr("affection", l.Affection).
		Build()
}

func itemResource(it item.Item) jsonapi.Resource {
	return jsonapi.NewResource("items", it.ID).
		Attr("type", it.Type).
		Attr("category", it.Category).
		Attr("name_key", it.NameKey).
		Attr("description_key", it.DescriptionKey).
		Attr("quantity", it.Quantity).
		Attr("quality", it.Quality).
		Attr("base_value", it.BaseValue).
		OptionalAttr("source_livestock_id", it.SourceLivestockID).
		Build()
}

func turnResource(playerID string, res turn.Result) jsonapi.Resource {
	events := make([]eventView, 0, len(res.Events))
	for _, e := range res.Events {
		events = append(events, eventView{
			Module:      string(e.Module),
			Key:         e.Key,
			Amount:      e.Amount,
			LivestockID: e.LivestockID,
			ItemID:      e.ItemID,
		})
	}
	return jsonapi.NewResource("turns", playerID+"/"+strconv.Itoa(res.Turn)).
		Attr("turn", res.Turn).
		Attr("money_delta", res.MoneyDelta).
		Attr("income", res.Income).
		Attr("expenses", res.Expenses).
		Attr("listings", toListingViews(res.Listings)).
		Attr("events", events).
		Build()
}

func entryResources(entries []ledger.Entry) []jsonapi.Resource {
	out := make([]jsonapi.Resource, 0, len(entries))
	for i, e := range entries {
		out = append(out, jsonapi.NewResource("ledger_entries", strconv.Itoa(i+1)).
			Attr("direction", string(e.Direction)).
			Attr("amount", e.Amount).
			Attr("reason", e.Reason).
			Attr("balance_after", e.BalanceAfter).
			Build())
	}
	return out
}
