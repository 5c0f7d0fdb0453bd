package listRehearsals

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
)

type RehearsalProvider interface {
	BandByID(ctx context.Context, id int64) (models.Band, error)
	RehearsalsByBand(ctx context.Context, bandID int64) ([]models.Rehearsal, error)
}

type Response struct {
	resp.Response
	Rehearsals []models.Rehearsal `json:"rehearsals"`
}

func New(
	log *slog.Logger,
	rehearsalProvider RehearsalProvider,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.listRehearsals.New"

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

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		band, err := rehearsalProvider.BandByID(ctx, bandID)
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

		rehearsals, err := rehearsalProvider.RehearsalsByBand(ctx, bandID)
		if err != nil {
			log.Error("failed to list rehearsals", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if rehearsals == nil {
			rehearsals = []models.Rehearsal{}
		}

		render.JSON(w, r, Response{
			Response:   resp.OK(),
			Rehearsals: rehearsals,
		})
	}
}
