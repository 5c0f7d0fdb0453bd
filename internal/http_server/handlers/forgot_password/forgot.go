package forgotPassword

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"rehearsal_scheduler/internal/auth"
	resp "rehearsal_scheduler/internal/lib/api/response"
	sl "rehearsal_scheduler/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Email string `json:"email" validate:"required,email"`
}

type Response struct {
	resp.Response
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.forgotPassword.New"

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

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		// The publish path may block on the broker, so the timeout here is
		// wider than for the pure-database handlers.
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		if err := authService.ForgotPassword(ctx, req.Email); err != nil {
			switch {
			case errors.Is(err, auth.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("There is no user with that email"))
			case errors.Is(err, auth.ErrResetCooldown):
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, resp.Error("Password reset already requested, try again later"))
			case errors.Is(err, auth.ErrDeliveryFailed):
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Email could not be sent"))
			default:
				log.Error("failed to process forgot password", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		log.Info("reset email queued")

		render.JSON(w, r, Response{
			Response: resp.Response{
				Status:  resp.StatusOK,
				Message: "Password reset email sent",
			},
		})
	}
}
