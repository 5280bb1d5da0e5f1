package v1

import (
	"context"
	"net/http"

	"github.com/andreyxaxa/Event-Pseudonymizer/internal/controller/restapi/v1/request"
	"github.com/andreyxaxa/Event-Pseudonymizer/internal/controller/restapi/v1/response"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// @Summary 	Transform batch
// @Description Replaces user_id in every record with its pseudonym. Records that cannot be processed come back as ProcessingFailed without data
// @Tags 		transform
// @Accept 		json
// @Produce 	json
// @Param 		batch body 	 request.Transform true "Batch of base64 records"
// @Success 	200 {object} response.Transform
// @Failure 	400 {object} response.Error "Malformed batch"
// @Router 		/v1/transform [post]
func (r *V1) transform(ctx *fiber.Ctx) error {
	var req request.Transform

	err := json.Unmarshal(ctx.Body(), &req)
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid batch")
	}

	tctx := ctx.UserContext()
	if r.transformDeadline > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(tctx, r.transformDeadline)
		defer cancel()
	}

	records := r.tr.Transform(tctx, req.BatchRecords())

	return ctx.Status(http.StatusOK).JSON(response.Transform{Records: records})
}
