package middleware

import (
	"errors"

	"github.com/emicklei/go-restful/v3"
)

var (
	ErrEmptyPrompt     = errors.New("prompt or prompts is required")
	ErrAmbiguousPrompt = errors.New("set either prompt or prompts, not both")
	ErrInvalidTimeout  = errors.New("timeout must be a positive duration such as 30s or a number of seconds")
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
}

// HandleError writes err as an ErrorResponse with the given status.
func HandleError(resp *restful.Response, err error, status int) {
	resp.WriteHeaderAndEntity(status, ErrorResponse{
		Error:     err.Error(),
		Status:    status,
		RequestID: resp.Header().Get(RequestIDHeader),
	})
}
