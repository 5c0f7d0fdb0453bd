package logout

import (
	"log/slog"
	"net/http"

	resp "rehearsal_scheduler/internal/lib/api/response"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
}

// New is advisory only: there is no server-side session to tear down.
// The client discards its token on its side.
func New(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		log.Info("user logged out")

		render.JSON(w, r, Response{
			Response: resp.Response{
				Status:  resp.StatusOK,
				Message: "Logged out successfully",
			},
		})
	}
}
