package resetPassword

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

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Pass string `json:"password" validate:"required,min=8"`
}

type Response struct {
	resp.Response
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resetPassword.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		resetToken := chi.URLParam(r, "resetToken")
		if resetToken == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Invalid or expired token"))

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

		token, user, err := authService.ResetPassword(ctx, resetToken, req.Pass)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidResetToken) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Invalid or expired token"))

				return
			}

			log.Error("failed to reset password", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("password reset", slog.Int64("uid", user.ID))

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Token:    token,
			User:     user,
		})
	}
}
