package createRehearsal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	resp "rehearsal_scheduler/internal/lib/api/response"
	sl "rehearsal_scheduler/internal/lib/logger"
	"rehearsal_scheduler/internal/middleware/authn"
	"rehearsal_scheduler/internal/models"
	"rehearsal_scheduler/internal/storage"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type RehearsalSaver interface {
	BandByID(ctx context.Context, id int64) (models.Band, error)
	VenueByID(ctx context.Context, id int64) (models.Venue, error)
	SaveRehearsal(ctx context.Context, reh models.Rehearsal) (int64, error)
}

type Request struct {
	Title     string    `json:"title" validate:"required"`
	Notes     string    `json:"notes"`
	VenueID   *int64    `json:"venue_id"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

type Response struct {
	resp.Response
	RehearsalID int64 `json:"rehearsal_id"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	rehearsalSaver RehearsalSaver,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.createRehearsal.New"

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

		bandID, err := strconv.ParseInt(chi.URLParam(r, "bandID"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Invalid band id"))

			return
		}

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

		if !req.EndTime.After(req.StartTime) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("End time must be after start time"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		band, err := rehearsalSaver.BandByID(ctx, bandID)
		if err != nil {
			if errors.Is(err, storage.ErrBandNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Band not found"))

				return
			}

			log.Error("failed to load band", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if !models.IsMember(band, userID) {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, resp.Error("Not a member of this band"))

			return
		}

		if req.VenueID != nil {
			if _, err := rehearsalSaver.VenueByID(ctx, *req.VenueID); err != nil {
				if errors.Is(err, storage.ErrVenueNotFound) {
					render.Status(r, http.StatusBadRequest)
					render.JSON(w, r, resp.Error("Venue not found"))

					return
				}

				log.Error("failed to load venue", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))

				return
			}
		}

		id, err := rehearsalSaver.SaveRehearsal(ctx, models.Rehearsal{
			BandID:    bandID,
			VenueID:   req.VenueID,
			Title:     req.Title,
			Notes:     req.Notes,
			Status:    models.RehearsalScheduled,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			CreatedBy: userID,
		})
		if err != nil {
			log.Error("failed to save rehearsal", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("rehearsal created", slog.Int64("rehearsal_id", id))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response:    resp.OK(),
			RehearsalID: id,
		})
	}
}
