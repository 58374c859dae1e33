// Package http exposes the game kernel as a JSON:API surface.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/artpar/menagerie/app"
	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/domain/livestock"
	"github.com/artpar/menagerie/domain/module"
	"github.com/artpar/menagerie/domain/player"
	"github.com/artpar/menagerie/pkg/jsonapi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxBody bounds request bodies; every command is a small JSON object.
const maxBody = 1 << 20

// GameHandler serves player commands and queries.
type GameHandler struct {
	kernel *app.Kernel
	logger zerolog.Logger
}

// NewGameHandler creates a handler over kernel.
func NewGameHandler(kernel *app.Kernel, logger zerolog.Logger) *GameHandler {
	return &GameHandler{
		kernel: kernel,
		logger: logger.With().Str("component", "http").Logger(),
	}
}

// PathPrefix is where the player endpoints are mounted.
const PathPrefix = "/api/v1/players"

// CreationPrefix is where the character-creation helpers are mounted.
const CreationPrefix = "/api/v1/character-creation"

// Routes registers the player endpoints on r.
func (h *GameHandler) Routes(r chi.Router) {
	r.Get(PathPrefix, h.ListPlayers)
	r.Post(PathPrefix, h.CreatePlayer)

	p := PathPrefix + "/{playerID}"
	r.Get(p, h.GetPlayer)
	r.Get(p+"/journal", h.Journal)
	r.Post(p+"/debit", h.Debit)
	r.Post(p+"/credit", h.Credit)
	r.Post(p+"/turns", h.AdvanceTurn)
	r.Post(p+"/modules/{kind}/upgrade", h.Upgrade)
	r.Post(p+"/listings/{listingID}/purchase", h.Purchase)
	r.Post(p+"/grants", h.Grant)
	r.Post(p+"/breedings", h.Breed)
	r.Post(p+"/livestock/{livestockID}/relocate", h.Relocate)
	r.Post(p+"/livestock/{livestockID}/process", h.Process)
	r.Post(p+"/dishes", h.Cook)
	r.Post(p+"/items/{itemID}/sell", h.SellItem)

	r.Get(CreationPrefix+"/options", h.CreationOptions)
	r.Get(CreationPrefix+"/preview", h.PreviewStartingFunds)
}

type createPlayerRequest struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Background struct {
		Family       string `json:"family"`
		Childhood    string `json:"childhood"`
		Education    string `json:"education"`
		StartingCity string `json:"starting_city"`
		BirthMonth   int    `json:"birth_month"`
	} `json:"background"`
}

// ListPlayers returns the ids of every stored player.
func (h *GameHandler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	ids, err := h.kernel.Players(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resources := jsonapi.Collect(ids, func(id string) jsonapi.Resource {
		return jsonapi.NewResource("players", id).Self(playerPath(id)).Build()
	})
	jsonapi.WriteCollection(w, http.StatusOK, resources, jsonapi.Meta{"total": len(ids)})
}

// CreatePlayer runs character creation.
func (h *GameHandler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req createPlayerRequest
	if !h.decode(w, r, &req) {
		return
	}
	bg := player.Background{
		Family:       req.Background.Family,
		Childhood:    req.Background.Childhood,
		Education:    req.Background.Education,
		StartingCity: req.Background.StartingCity,
		BirthMonth:   req.Background.BirthMonth,
	}
	c := player.Character{FirstName: req.FirstName, LastName: req.LastName, Background: bg}
	agg, err := h.kernel.CreatePlayer(r.Context(), req.ID, c)
	if err != nil {
		h.writeError(w, r, err, creationField(err))
		return
	}
	jsonapi.WriteCreated(w, playerResource(agg))
}

// creationField blames the named member for a bad name, the background
// otherwise.
func creationField(err error) source {
	var in *fault.InputError
	if errors.As(err, &in) {
		return field("/" + in.Field)
	}
	return field("/background")
}

// CreationOptions lists the accepted character-creation choices.
func (h *GameHandler) CreationOptions(w http.ResponseWriter, r *http.Request) {
	jsonapi.WriteResource(w, http.StatusOK, creationOptionsResource(h.kernel.CreationOptions()))
}

// PreviewStartingFunds computes starting money and perks for the choices
// in the query string without creating a player.
func (h *GameHandler) PreviewStartingFunds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month, err := strconv.Atoi(q.Get("birth_month"))
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("birth_month must be an integer").InParameter("birth_month"))
		return
	}
	bg := player.Background{
		Family:       q.Get("family"),
		Childhood:    q.Get("childhood"),
		Education:    q.Get("education"),
		StartingCity: q.Get("starting_city"),
		BirthMonth:   month,
	}
	p, err := h.kernel.PreviewStartingFunds(bg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, previewResource(p))
}

// GetPlayer returns the committed state of a player.
func (h *GameHandler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	agg, err := h.kernel.State(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, playerResource(agg))
}

// Journal returns the player's ledger journal.
func (h *GameHandler) Journal(w http.ResponseWriter, r *http.Request) {
	entries, err := h.kernel.Journal(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteCollection(w, http.StatusOK, entryResources(entries), jsonapi.Meta{"total": len(entries)})
}

type moneyRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// Debit charges the player.
func (h *GameHandler) Debit(w http.ResponseWriter, r *http.Request) {
	var req moneyRequest
	if !h.decode(w, r, &req) {
		return
	}
	balance, err := h.kernel.Debit(r.Context(), chi.URLParam(r, "playerID"), req.Amount, req.Reason)
	if err != nil {
		h.writeError(w, r, err, field("/amount"))
		return
	}
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"balance": balance})
}

// Credit pays the player.
func (h *GameHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var req moneyRequest
	if !h.decode(w, r, &req) {
		return
	}
	balance, err := h.kernel.Credit(r.Context(), chi.URLParam(r, "playerID"), req.Amount, req.Reason)
	if err != nil {
		h.writeError(w, r, err, field("/amount"))
		return
	}
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"balance": balance})
}

// AdvanceTurn runs one monthly turn.
func (h *GameHandler) AdvanceTurn(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	res, err := h.kernel.AdvanceTurn(r.Context(), playerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, turnResource(playerID, res))
}

// Upgrade raises a module one level.
func (h *GameHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	m, err := h.kernel.Upgrade(r.Context(), playerID, module.Kind(chi.URLParam(r, "kind")))
	if err != nil {
		h.writeError(w, r, err, param("kind"))
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, moduleResource(m))
}

// Purchase buys a market listing.
func (h *GameHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	l, err := h.kernel.Purchase(r.Context(), chi.URLParam(r, "playerID"), chi.URLParam(r, "listingID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, livestockResource(l))
}

type grantRequest struct {
	MarketLevel int `json:"market_level"`
}

// Grant generates a free livestock into the player's holdings.
func (h *GameHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if !h.decode(w, r, &req) {
		return
	}
	l, err := h.kernel.Grant(r.Context(), chi.URLParam(r, "playerID"), req.MarketLevel)
	if err != nil {
		h.writeError(w, r, err, field("/market_level"))
		return
	}
	jsonapi.WriteCreated(w, livestockResource(l))
}

type breedRequest struct {
	FatherID string `json:"father_id"`
	MotherID string `json:"mother_id"`
}

// Breed pairs two farm animals.
func (h *GameHandler) Breed(w http.ResponseWriter, r *http.Request) {
	var req breedRequest
	if !h.decode(w, r, &req) {
		return
	}
	l, err := h.kernel.Breed(r.Context(), chi.URLParam(r, "playerID"), req.FatherID, req.MotherID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteCreated(w, livestockResource(l))
}

type relocateRequest struct {
	Location string `json:"location"`
}

// Relocate moves a livestock between modules.
func (h *GameHandler) Relocate(w http.ResponseWriter, r *http.Request) {
	var req relocateRequest
	if !h.decode(w, r, &req) {
		return
	}
	target := module.Kind(req.Location)
	if target == "" {
		target = livestock.Unassigned
	}
	l, err := h.kernel.Relocate(r.Context(), chi.URLParam(r, "playerID"), chi.URLParam(r, "livestockID"), target)
	if err != nil {
		h.writeError(w, r, err, field("/location"))
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, livestockResource(l))
}

type processRequest struct {
	Method string `json:"method"`
}

// Process slaughters a livestock into items.
func (h *GameHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !h.decode(w, r, &req) {
		return
	}
	items, err := h.kernel.Process(r.Context(), chi.URLParam(r, "playerID"), chi.URLParam(r, "livestockID"), req.Method)
	if err != nil {
		h.writeError(w, r, err, field("/method"))
		return
	}
	jsonapi.WriteCollection(w, http.StatusCreated, jsonapi.Collect(items, itemResource), nil)
}

type cookRequest struct {
	Recipe  string   `json:"recipe"`
	ItemIDs []string `json:"item_ids"`
}

// Cook prepares a recipe.
func (h *GameHandler) Cook(w http.ResponseWriter, r *http.Request) {
	var req cookRequest
	if !h.decode(w, r, &req) {
		return
	}
	dish, err := h.kernel.Cook(r.Context(), chi.URLParam(r, "playerID"), req.Recipe, req.ItemIDs)
	if err != nil {
		h.writeError(w, r, err, field("/item_ids"))
		return
	}
	jsonapi.WriteCreated(w, itemResource(dish))
}

type sellRequest struct {
	Quantity int `json:"quantity"`
}

// SellItem sells units of an item.
func (h *GameHandler) SellItem(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if !h.decode(w, r, &req) {
		return
	}
	earned, err := h.kernel.SellItem(r.Context(), chi.URLParam(r, "playerID"), chi.URLParam(r, "itemID"), req.Quantity)
	if err != nil {
		h.writeError(w, r, err, field("/quantity"))
		return
	}
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"earned": earned})
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func (h *GameHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("malformed request body: "+err.Error()))
		return false
	}
	return true
}
