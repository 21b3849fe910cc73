package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/harwoodlabs/kingfisher/internal/chat"
)

// Guide is the pipeline surface the handlers need. Satisfied by
// *chat.Orchestrator.
type Guide interface {
	Stream(ctx context.Context, query string) <-chan chat.StreamEvent
	Answer(ctx context.Context, query string) (chat.Result, error)
}

// ChatHandler serves the synchronous and streaming chat endpoints.
type ChatHandler struct {
	Orch Guide
}

// Register mounts the chat endpoints under the provided group.
func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
	g.GET("/chat/stream", h.stream)
}

type chatRequest struct {
	Message string `json:"message"`
}

// chat runs the full pipeline and replies with the terminal result only.
func (h *ChatHandler) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	query := strings.TrimSpace(req.Message)
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	result, err := h.Orch.Answer(c.Request().Context(), query)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// stream replays the pipeline's event protocol as newline-delimited JSON,
// flushing after every event. A missing query still answers 200 with a single
// error event so the client always gets a well-formed stream.
func (h *ChatHandler) stream(c echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/x-ndjson")
	res.Header().Set("Cache-Control", "no-cache")
	res.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(res)
	flush := func() {
		if f, ok := res.Writer.(http.Flusher); ok {
			f.Flush()
		}
	}

	query := strings.TrimSpace(c.QueryParam("message"))
	if query == "" {
		_ = enc.Encode(chat.StreamEvent{Type: chat.EventError, Message: "message is required"})
		flush()
		return nil
	}

	for ev := range h.Orch.Stream(c.Request().Context(), query) {
		if err := enc.Encode(ev); err != nil {
			// The client went away; the pipeline finishes on its own.
			return nil
		}
		flush()
	}
	return nil
}
