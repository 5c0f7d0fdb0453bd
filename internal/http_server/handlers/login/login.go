package login

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"rehearsal_scheduler/internal/auth"
	resp "rehearsal_scheduler/internal/lib/api/response"
	sl "rehearsal_scheduler/internal/lib/logger"
	"rehearsal_scheduler/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Request struct {
	Email string `json:"email"`
	Pass  string `json:"password"`
}

type Response struct {
	resp.Response
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
}

func New(
	log *slog.Logger,
	authService *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		log.Info("Request body decoded")

		// Missing fields are a 400; a wrong email or password is a 401.
		// The two 401 cases are indistinguishable on purpose.
		if req.Email == "" || req.Pass == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Please provide email and password"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		token, user, err := authService.Login(ctx, req.Email, req.Pass)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid credentials"))

				return
			}

			log.Error("failed to login user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("User logged in successfully")

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Token:    token,
			User:     user,
		})
	}
}
