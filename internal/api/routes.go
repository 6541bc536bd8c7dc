package api

import (
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/api/middleware"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
)

func RegisterRoutes(container *restful.Container, handler *Handler) {
	ws := new(restful.WebService)

	ws.
		Path("/api/v1").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	// Health endpoint
	ws.
		Route(ws.GET("health").
			To(handler.Health).
			Doc("Health check").
			Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
			Writes(HealthResponse{}).
			Returns(200, "OK", HealthResponse{}))

	timeout := ws.QueryParameter("timeout", "Per-prompt timeout, e.g. 30s or 0.5 (seconds)").DataType("string").Required(false)

	ws.
		Route(ws.POST("/prompt").
			To(handler.Prompt).
			Doc("Prompt the model; fails if any prompt fails or times out").
			Metadata(restfulspec.KeyOpenAPITags, []string{"prompt"}).
			Param(timeout).
			Reads(models.PromptRequest{}).
			Writes(models.Response{}).
			Returns(200, "OK", models.Response{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(504, "Prompt Timed Out", middleware.ErrorResponse{}).
			Returns(500, "Internal Server Error", middleware.ErrorResponse{}))

	ws.
		Route(ws.POST("/try_prompt").
			To(handler.TryPrompt).
			Doc("Prompt the model; failed or timed out prompts come back as null").
			Metadata(restfulspec.KeyOpenAPITags, []string{"prompt"}).
			Param(timeout).
			Reads(models.PromptRequest{}).
			Writes(TryPromptResponse{}).
			Returns(200, "OK", TryPromptResponse{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}))

	container.Add(ws)
}
