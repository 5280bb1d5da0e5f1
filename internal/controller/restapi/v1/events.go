package v1

import (
	"errors"
	"net/http"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Event-Pseudonymizer/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
)

// @Summary 	Forward event
// @Description Publishes one raw event to the stream, keyed by user_id
// @Tags 		events
// @Accept 		json
// @Produce 	json
// @Param 		event body 	 object true "Event with a string user_id"
// @Success 	200 {object} response.Message
// @Failure 	400 {object} response.Message "Not a JSON object with user_id"
// @Failure 	500 {object} response.Message "Stream unavailable"
// @Router 		/v1/events [post]
func (r *V1) postEvent(ctx *fiber.Ctx) error {
	err := r.ingest.Forward(ctx.UserContext(), ctx.Body())
	if err != nil {
		if errors.Is(err, errs.ErrDecode) {
			return ctx.Status(http.StatusBadRequest).JSON(response.Message{
				Message: "Invalid event",
				Error:   err.Error(),
			})
		}
		r.logger.Error(err, "restapi - v1 - postEvent")

		return ctx.Status(http.StatusInternalServerError).JSON(response.Message{
			Message: "Error putting record to stream",
			Error:   err.Error(),
		})
	}

	return ctx.Status(http.StatusOK).JSON(response.Message{Message: "Successfully put record to stream"})
}
