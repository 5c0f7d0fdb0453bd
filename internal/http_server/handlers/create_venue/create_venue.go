package createVenue

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
	"github.com/go-playground/validator/v10"
)

type VenueSaver interface {
	SaveVenue(ctx context.Context, venue models.Venue) (int64, error)
	VenueByID(ctx context.Context, id int64) (models.Venue, error)
}

type Request struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type Response struct {
	resp.Response
	Venue models.Venue `json:"venue"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	venueSaver VenueSaver,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.createVenue.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		id, err := venueSaver.SaveVenue(ctx, models.Venue{
			Name:    req.Name,
			Address: req.Address,
			Phone:   req.Phone,
		})
		if err != nil {
			log.Error("failed to save venue", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		venue, err := venueSaver.VenueByID(ctx, id)
		if err != nil {
			log.Error("failed to load created venue", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("venue created", slog.Int64("venue_id", id))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response: resp.OK(),
			Venue:    venue,
		})
	}
}
