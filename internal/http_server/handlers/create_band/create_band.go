package createBand

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	resp "rehearsal_scheduler/internal/lib/api/response"
	sl "rehearsal_scheduler/internal/lib/logger"
	"rehearsal_scheduler/internal/middleware/authn"
	"rehearsal_scheduler/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type BandSaver interface {
	SaveBand(ctx context.Context, band models.Band) (int64, error)
	BandByID(ctx context.Context, id int64) (models.Band, error)
}

type Request struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
	Location    string `json:"location"`
}

type Response struct {
	resp.Response
	Band models.Band `json:"band"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	bandSaver BandSaver,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.createBand.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, ok := authn.UserID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("not authorized"))

			return
		}

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
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

		id, err := bandSaver.SaveBand(ctx, models.Band{
			Name:        req.Name,
			Description: req.Description,
			Genre:       req.Genre,
			Location:    req.Location,
			CreatedBy:   userID,
		})
		if err != nil {
			log.Error("failed to save band", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		band, err := bandSaver.BandByID(ctx, id)
		if err != nil {
			log.Error("failed to load created band", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("band created", slog.Int64("band_id", id))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response: resp.OK(),
			Band:     band,
		})
	}
}
