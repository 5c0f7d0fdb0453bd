package listVenues

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	resp "rehearsal_scheduler/internal/lib/api/response"
	sl "rehearsal_scheduler/internal/lib/logger"
	"rehearsal_scheduler/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type VenueProvider interface {
	Venues(ctx context.Context) ([]models.Venue, error)
}

type Response struct {
	resp.Response
	Venues []models.Venue `json:"venues"`
}

func New(
	log *slog.Logger,
	venueProvider VenueProvider,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.listVenues.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		venues, err := venueProvider.Venues(ctx)
		if err != nil {
			log.Error("failed to list venues", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if venues == nil {
			venues = []models.Venue{}
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Venues:   venues,
		})
	}
}
