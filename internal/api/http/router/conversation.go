package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/autodealer/dealer_backend/internal/api/http/handler"
	"github.com/autodealer/dealer_backend/pkg/authorize"
)

func (r *Router) registerConversationRoutes(
	api fiber.Router,
	ch *handler.ConversationHandler,
	authRequired fiber.Handler,
	limit fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	convs := api.Group("/conversations", authRequired)
	if limit != nil {
		convs.Use(limit)
	}

	convs.Get("/", requirePerm(authorize.ResourceConversation, authorize.ActionList), ch.List)
	convs.Post("/", requirePerm(authorize.ResourceConversation, authorize.ActionCreate), ch.Create)
	convs.Get("/unread", requirePerm(authorize.ResourceConversation, authorize.ActionList), ch.Unread)

	c := convs.Group("/:id")
	c.Get("/", requirePerm(authorize.ResourceConversation, authorize.ActionRead), ch.Get)
	c.Delete("/", requirePerm(authorize.ResourceConversation, authorize.ActionDelete), ch.Delete)
	c.Patch("/status", requirePerm(authorize.ResourceConversation, authorize.ActionUpdate), ch.UpdateStatus)
	c.Get("/messages", requirePerm(authorize.ResourceMessage, authorize.ActionRead), ch.ListMessages)
	c.Post("/messages", requirePerm(authorize.ResourceMessage, authorize.ActionCreate), ch.Append)
	c.Patch("/read", requirePerm(authorize.ResourceMessage, authorize.ActionUpdate), ch.MarkRead)
}
