package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/pubconquest/internal/conquest"
	"github.com/playperu/pubconquest/internal/realtime"
	"github.com/playperu/pubconquest/internal/store"
)

// Deps are the collaborators the API is built from.
type Deps struct {
	Store  *store.Store
	Hub    *realtime.Hub
	Logger *slog.Logger

	// AdminSecretHash is the bcrypt hash of the shared admin secret.
	AdminSecretHash string
	// SubmitRatePerMinute caps captures and challenge steps per player.
	// Zero disables the limit.
	SubmitRatePerMinute int
	// HistoryLimit caps the recent history lists in snapshots.
	HistoryLimit int
}

type deps struct {
	store       *store.Store
	hub         *realtime.Hub
	logger      *slog.Logger
	resolver    *conquest.Resolver
	challenges  *conquest.Challenges
	corrections *conquest.Corrections
	limiter     *submitLimiter
	adminHash   []byte
	history     int
}

func newDeps(d Deps) *deps {
	if d.Hub == nil {
		d.Hub = realtime.NewHub(d.Logger, "local")
	}
	history := d.HistoryLimit
	if history <= 0 {
		history = realtime.DefaultHistoryLimit
	}
	return &deps{
		store:       d.Store,
		hub:         d.Hub,
		logger:      d.Logger,
		resolver:    conquest.NewResolver(d.Store, d.Hub, d.Logger),
		challenges:  conquest.NewChallenges(d.Store, d.Hub, d.Logger),
		corrections: conquest.NewCorrections(d.Store, d.Hub, d.Logger),
		limiter:     newSubmitLimiter(d.SubmitRatePerMinute),
		adminHash:   []byte(d.AdminSecretHash),
		history:     history,
	}
}

// Mount registers the game API, the docs and the OpenAPI document on r.
func Mount(r chi.Router, deps Deps) {
	addRoutes(r, newDeps(deps))
}

func addRoutes(r chi.Router, d *deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("PubConquest API", "/openapi.json", "/docs"))

	// Player routes.
	r.Get("/api/teams", handleListTeams(d))
	r.Post("/api/join", handleJoin(d))
	r.Get("/api/scores", handleScores(d))
	r.Group(func(r chi.Router) {
		r.Use(playerAuthMiddleware(d))
		r.Get("/api/state", handleState(d))
		r.Get("/api/events", handleEvents(d))
		r.Get("/api/ws", handleWS(d))

		r.Group(func(r chi.Router) {
			r.Use(rateLimitMiddleware(d.limiter))
			r.Post("/api/captures", handleCapture(d))
			r.Post("/api/challenges/{id}/steps", handleChallengeStep(d))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", handleAdminLogin(d))
		r.Post("/logout", handleAdminLogout(d))

		r.Group(func(r chi.Router) {
			r.Use(adminAuthMiddleware(d))
			r.Get("/me", handleAdminMe(d))
			addAdminRoutes(r, d)
		})
	})
}

func addAdminRoutes(r chi.Router, d *deps) {
	r.Get("/state", handleAdminState(d))
	r.Get("/audit", handleAdminAudit(d))
	r.Put("/game", handleAdminSetGame(d))

	r.Post("/teams", handleAdminCreateTeam(d))
	r.Post("/locations", handleAdminCreateLocation(d))
	r.Post("/challenges", handleAdminCreateChallenge(d))

	r.Delete("/captures/{id}", handleAdminUndoCapture(d))

	r.Post("/locations/{id}/reset", handleAdminResetLocation(d))
	r.Post("/locations/{id}/replay", handleAdminReplayLocation(d))
	r.Post("/locations/{id}/lock", handleAdminToggleLock(d))
	r.Put("/locations/{id}/owner", handleAdminChangeOwner(d))
	r.Put("/locations/{id}/drinks", handleAdminSetDrinks(d))

	r.Delete("/challenges/{id}", handleAdminDeleteChallenge(d))
	r.Post("/challenges/{id}/reset", handleAdminResetChallenge(d))

	r.Delete("/bonuses/{id}", handleAdminRevokeBonus(d))

	r.Put("/players/{id}/team", handleAdminReassignPlayer(d))
	r.Delete("/players/{id}", handleAdminDeletePlayer(d))
}
