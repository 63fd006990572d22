package handlers

import (
	"net/http"

	"memoryland-backend/internal/middleware"
	"memoryland-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Services bundles what the HTTP layer needs
type Services struct {
	Verifier     *services.ClaimsVerifier
	Identity     *services.IdentityResolver
	Displays     *services.DisplayService
	Tokens       *services.TokenService
	Albums       *services.AlbumService
	Photos       *services.PhotoService
	Transactions *services.TransactionService
	Hub          *services.DisplayHub

	MaxUploadBytes int64
}

// NewRouter wires every route onto a chi router
func NewRouter(svc Services) http.Handler {
	displayHandler := NewDisplayHandler(svc.Displays, svc.Tokens)
	albumHandler := NewAlbumHandler(svc.Albums, svc.Photos, svc.MaxUploadBytes)
	photoHandler := NewPhotoHandler(svc.Photos)
	txHandler := NewTransactionHandler(svc.Transactions, svc.MaxUploadBytes)
	wsHandler := NewWebSocketHandler(svc.Hub, svc.Displays)

	authenticate := middleware.Authenticate(svc.Verifier, svc.Identity)
	maybeAuthenticate := middleware.OptionalAuthenticate(svc.Verifier, svc.Identity)

	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/display-types", displayHandler.ListDisplayTypes)

		// Session or display token
		r.With(maybeAuthenticate).Get("/displays/{id}", displayHandler.GetDisplay)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/displays", displayHandler.ListDisplays)
			r.Post("/displays", displayHandler.CreateDisplay)
			r.Patch("/displays/{id}", displayHandler.RenameDisplay)
			r.Delete("/displays/{id}", displayHandler.DeleteDisplay)
			r.Put("/displays/{id}/slots/{position}", displayHandler.AssignSlot)
			r.Delete("/slots/{id}", displayHandler.RemoveSlot)
			r.Get("/displays/{id}/tokens", displayHandler.ListTokens)
			r.Post("/displays/{id}/tokens/{kind}", displayHandler.IssueToken)
			r.Delete("/displays/{id}/tokens/{kind}", displayHandler.RevokeToken)

			r.Get("/albums", albumHandler.ListAlbums)
			r.Post("/albums", albumHandler.CreateAlbum)
			r.Get("/albums/{id}", albumHandler.GetAlbumPhotos)
			r.Patch("/albums/{id}", albumHandler.RenameAlbum)
			r.Delete("/albums/{id}", albumHandler.DeleteAlbum)
			r.Post("/albums/{id}/photos", albumHandler.UploadPhoto)

			r.Get("/photos/{id}", photoHandler.GetPhoto)
			r.Patch("/photos/{id}", photoHandler.RenamePhoto)
			r.Delete("/photos/{id}", photoHandler.DeletePhoto)

			r.Post("/transaction", txHandler.Begin)
			r.Get("/transaction", txHandler.Get)
			r.Delete("/transaction", txHandler.Close)
			r.Post("/transaction/photos", txHandler.Upload)
		})
	})

	// WebSocket route
	r.With(maybeAuthenticate).Get("/ws/displays/{id}", wsHandler.HandleDisplay)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
