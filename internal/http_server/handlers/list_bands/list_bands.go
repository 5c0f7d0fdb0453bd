package listBands

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
)

type BandProvider interface {
	BandsByUser(ctx context.Context, userID int64) ([]models.Band, error)
}

type Response struct {
	resp.Response
	Bands []models.Band `json:"bands"`
}

func New(
	log *slog.Logger,
	bandProvider BandProvider,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.listBands.New"

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

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		bands, err := bandProvider.BandsByUser(ctx, userID)
		if err != nil {
			log.Error("failed to list bands", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if bands == nil {
			bands = []models.Band{}
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Bands:    bands,
		})
	}
}
