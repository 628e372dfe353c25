package controller

import (
	"ai-casedraft-be/internal/dto"
	"ai-casedraft-be/internal/pkg/serverutils"
	"ai-casedraft-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Submit(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Refresh(ctx *fiber.Ctx) error
	Answer(ctx *fiber.Ctx) error
	Retry(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	Edit(ctx *fiber.Ctx) error
	ChatThread(ctx *fiber.Ctx) error
	GenerateCurated(ctx *fiber.Ctx) error
}

type sessionController struct {
	sessionService service.ISessionService
}

func NewSessionController(sessionService service.ISessionService) ISessionController {
	return &sessionController{
		sessionService: sessionService,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/session/v1")
	h.Use(auth)
	h.Post("", c.Submit)
	h.Get(":id", c.Show)
	h.Post(":id/refresh", c.Refresh)
	h.Post(":id/answer", c.Answer)
	h.Post(":id/retry", c.Retry)
	h.Post(":id/cancel", c.Cancel)
	h.Post(":id/edit", c.Edit)
	h.Get(":id/chat", c.ChatThread)
	h.Post(":id/curation/generate", c.GenerateCurated)
}

func (c *sessionController) Submit(ctx *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.sessionService.Submit(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Session submitted", res))
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	res, err := c.sessionService.Get(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *sessionController) Refresh(ctx *fiber.Ctx) error {
	res, err := c.sessionService.Refresh(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success refresh session", res))
}

func (c *sessionController) Answer(ctx *fiber.Ctx) error {
	var req dto.AnswerQuestionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.sessionService.Answer(ctx.Context(), ctx.Params("id"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Answer accepted", res))
}

func (c *sessionController) Retry(ctx *fiber.Ctx) error {
	res, err := c.sessionService.Retry(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Generation restarted", res))
}

func (c *sessionController) Cancel(ctx *fiber.Ctx) error {
	res, err := c.sessionService.Cancel(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Generation cancelled", res))
}

func (c *sessionController) Edit(ctx *fiber.Ctx) error {
	var req dto.EditRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.sessionService.Edit(ctx.Context(), ctx.Params("id"), &req)
	if err != nil {
		return err
	}

	message := "Edit applied"
	if !res.Applied {
		message = "Edit failed"
	}
	return ctx.JSON(serverutils.SuccessResponse(message, res))
}

func (c *sessionController) ChatThread(ctx *fiber.Ctx) error {
	res, err := c.sessionService.ChatThread(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chat thread", res))
}

func (c *sessionController) GenerateCurated(ctx *fiber.Ctx) error {
	var req dto.GenerateCuratedRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return err
		}
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.sessionService.GenerateCurated(ctx.Context(), ctx.Params("id"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Curated generation started", res))
}
