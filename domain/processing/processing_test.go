package processing_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/item"
	"github.com/artpar/menagerie/domain/livestock"
	"github.com/artpar/menagerie/domain/module"
	"github.com/artpar/menagerie/domain/processing"
)

var table = processing.Table{
	{Species: "pig", Method: "standard", ItemType: "pork", Category: item.CategoryMeat, NameKey: "item.pork", Base: 2, Multiplier: 3, BaseValue: 10, Module: module.Slaughterhouse, MinLevel: 1},
	{Species: "pig", Method: "premium", ItemType: "pork_loin", Category: item.CategoryMeat, NameKey: "item.pork_loin", Base: 1, Multiplier: 2, BaseValue: 30, Module: module.Slaughterhouse, MinLevel: 3},
	{Species: "pig", Method: "premium", ItemType: "leather", Category: "material", NameKey: "item.leather", Base: 1, Multiplier: 0, BaseValue: 5, Module: module.Slaughterhouse, MinLevel: 3},
}

func slaughterhouse(level int) processing.Sites {
	return processing.Sites{module.Slaughterhouse: {Level: level}}
}

func TestProcess_StandardYield(t *testing.T) {
	l := livestock.Livestock{ID: "pig-1", OwnerID: "p1", Species: "pig", Quality: 0.8}

	items, err := processing.Process(l, "standard", table, slaughterhouse(1))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	got := items[0]
	if got.Quantity != 4 {
		t.Errorf("Quantity = %d, want 4", got.Quantity)
	}
	if got.Quality != 0.8 {
		t.Errorf("Quality = %v, want 0.8", got.Quality)
	}
	if got.SourceLivestockID != "pig-1" || got.OwnerID != "p1" {
		t.Errorf("lineage/owner not carried: %+v", got)
	}
}

func TestProcess_Deterministic(t *testing.T) {
	l := livestock.Livestock{ID: "pig-1", Species: "pig", Quality: 0.55}
	a, err := processing.Process(l, "premium", table, slaughterhouse(3))
	if err != nil {
		t.Fatal(err)
	}
	b, err := processing.Process(l, "premium", table, slaughterhouse(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 2 || len(b) != 2 {
		t.Fatalf("want two items, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("item %d differs:\n%+v\n%+v", i, a[i], b[i])
		}
	}
	if a[0].ID == a[1].ID {
		t.Error("items from one process share an id")
	}
}

func TestProcess_YieldBonus(t *testing.T) {
	l := livestock.Livestock{ID: "pig-1", Species: "pig", Quality: 0.8}
	sites := processing.Sites{module.Slaughterhouse: {Level: 2, Effects: module.Effects{YieldBonus: 2}}}
	items, err := processing.Process(l, "standard", table, sites)
	if err != nil {
		t.Fatal(err)
	}
	if items[0].Quantity != 6 {
		t.Errorf("Quantity = %d, want 6", items[0].Quantity)
	}
}

func TestProcess_Errors(t *testing.T) {
	l := livestock.Livestock{ID: "pig-1", Species: "pig", Quality: 0.8}

	tests := []struct {
		name    string
		l       livestock.Livestock
		method  string
		sites   processing.Sites
		wantErr error
	}{
		{"unknown method", l, "smoked", slaughterhouse(5), fault.ErrInvalidMethod},
		{"unknown species", livestock.Livestock{Species: "cow"}, "standard", slaughterhouse(5), fault.ErrInvalidMethod},
		{"module not built", l, "standard", slaughterhouse(0), fault.ErrModuleLocked},
		{"module too low", l, "premium", slaughterhouse(2), fault.ErrModuleLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := processing.Process(tt.l, tt.method, table, tt.sites)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if items != nil {
				t.Errorf("items = %v, want nil", items)
			}
		})
	}
}

func TestProcess_InvalidMethodNamesAlternatives(t *testing.T) {
	tests := []struct {
		species string
		want    string
	}{
		{"pig", `(available: standard, premium)`},
		{"cow", "cow cannot be processed"},
	}
	for _, tt := range tests {
		t.Run(tt.species, func(t *testing.T) {
			_, err := processing.Process(livestock.Livestock{ID: "x", Species: tt.species}, "smoked", table, slaughterhouse(5))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestTable_Methods(t *testing.T) {
	got := table.Methods("pig")
	if len(got) != 2 || got[0] != "standard" || got[1] != "premium" {
		t.Errorf("Methods = %v", got)
	}
}
