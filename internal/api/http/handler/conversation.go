package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/internal/service/conversation"
)

type ConversationHandler struct {
	svc conversation.Service
}

func NewConversationHandler(svc conversation.Service) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

func mapConversationError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, conversation.ErrValidation):
		return badRequest(c, err.Error())
	case errors.Is(err, conversation.ErrNotFound):
		return notFound(c, err.Error())
	default:
		slog.ErrorContext(c.Context(), "conversation request failed",
			"method", c.Method(), "path", c.Path(), "error", err)
		return internalError(c)
	}
}

// GET /conversations
func (h *ConversationHandler) List(c fiber.Ctx) error {
	claims, valid := claimsFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	convs, err := h.svc.List(c.Context(), claims.UserID, pageQuery(c))
	if err != nil {
		return mapConversationError(c, err)
	}
	return ok(c, convs)
}

// pageQuery reads the optional page and per_page parameters.
func pageQuery(c fiber.Ctx) conversation.Page {
	var q struct {
		Page    int `query:"page"`
		PerPage int `query:"per_page"`
	}
	_ = c.Bind().Query(&q)
	return conversation.Page{Page: q.Page, PerPage: q.PerPage}
}

type createConversationBody struct {
	ClientID        *string           `json:"client_id"`
	Client          *conversation.Ref `json:"client"`
	Agent           *conversation.Ref `json:"agent"`
	Participants    []string          `json:"participants"`
	VehicleID       *string           `json:"vehicle_id"`
	Subject         string            `json:"subject"`
	IsAINegotiation *bool             `json:"is_ai_negotiation"`
}

// POST /conversations
func (h *ConversationHandler) Create(c fiber.Ctx) error {
	claims, valid := claimsFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	var body createConversationBody
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	req := conversation.CreateRequest{
		Client:          body.Client,
		Agent:           body.Agent,
		Subject:         body.Subject,
		IsAINegotiation: body.IsAINegotiation,
	}
	if body.ClientID != nil {
		id, err := uuid.Parse(*body.ClientID)
		if err != nil {
			return badRequest(c, "invalid client_id")
		}
		req.ClientID = &id
	}
	for _, raw := range body.Participants {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "invalid participant id")
		}
		req.Participants = append(req.Participants, id)
	}
	if body.VehicleID != nil && *body.VehicleID != "" {
		id, err := uuid.Parse(*body.VehicleID)
		if err != nil {
			return badRequest(c, "invalid vehicle_id")
		}
		req.VehicleID = &id
	}

	caller := conversation.Caller{ID: claims.UserID, Role: claims.Role}
	conv, isNew, err := h.svc.CreateOrGet(c.Context(), caller, req)
	if err != nil {
		return mapConversationError(c, err)
	}
	if isNew {
		return created(c, conv)
	}
	return ok(c, conv)
}

// GET /conversations/unread
func (h *ConversationHandler) Unread(c fiber.Ctx) error {
	claims, valid := claimsFromFiber(c)
	if !valid {
		return unauthorized(c)
	}

	summary, err := h.svc.UnreadSummary(c.Context(), claims.UserID)
	if err != nil {
		return mapConversationError(c, err)
	}
	return ok(c, summary)
}

// GET /conversations/:id
func (h *ConversationHandler) Get(c fiber.Ctx) error {
	claims, valid := claimsFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	convID, valid := parseIDParam(c, "id")
	if !valid {
		return badRequest(c, "invalid conversation id")
	}

	conv, err := h.svc.Get(c.Context(), convID, claims.UserID)
	if err != nil {
		return mapConversationError(c, err)
	}
	return ok(c, conv)
}

// GET /conversations/:id/messages
func (h *ConversationHandler) ListMessages(c fiber.Ctx) error {
	claims, valid := claimsFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	convID, valid := parseIDParam(c, "id")
	if !valid {
		return badRequest(c, "invalid conversation id")
	}

	msgs, err := h.svc.ListMessages(c.Context(), convID, claims.UserID, pageQuery(c))
	if err != nil {
		return mapConversationError(c, err)
	}
	return ok(c, msgs)
}

// POST /conversations/:id/messages
func (h *ConversationHandler) Append(c fiber.Ctx) error {
	claims, valid := claimsFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	convID, valid := parseIDParam(c, "id")
	if !valid {
		return badRequest(c, "invalid conversation id")
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.svc.Append(c.Context(), convID, claims.UserID, body.Content)
	if err != nil {
		return mapConversationError(c, err)
	}
	return created(c, res)
}

// PATCH /conversations/:id/read
func (h *ConversationHandler) MarkRead(c fiber.Ctx) error {
	claims, valid := claimsFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	convID, valid := parseIDParam(c, "id")
	if !valid {
		return badRequest(c, "invalid conversation id")
	}

	res, err := h.svc.MarkRead(c.Context(), convID, claims.UserID)
	if err != nil {
		return mapConversationError(c, err)
	}
	return ok(c, res)
}

// PATCH /conversations/:id/status
func (h *ConversationHandler) UpdateStatus(c fiber.Ctx) error {
	claims, valid := claimsFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	convID, valid := parseIDParam(c, "id")
	if !valid {
		return badRequest(c, "invalid conversation id")
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	conv, err := h.svc.UpdateStatus(c.Context(), convID, claims.UserID, body.Status)
	if err != nil {
		return mapConversationError(c, err)
	}
	return ok(c, conv)
}

// DELETE /conversations/:id
func (h *ConversationHandler) Delete(c fiber.Ctx) error {
	claims, valid := claimsFromFiber(c)
	if !valid {
		return unauthorized(c)
	}
	convID, valid := parseIDParam(c, "id")
	if !valid {
		return badRequest(c, "invalid conversation id")
	}

	n, err := h.svc.Delete(c.Context(), convID, claims.UserID)
	if err != nil {
		return mapConversationError(c, err)
	}
	return ok(c, fiber.Map{"conversation_id": convID, "deleted_messages": n})
}
