package controller

import (
	"strconv"

	"ai-casedraft-be/internal/pkg/serverutils"
	"ai-casedraft-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IVersionController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Restore(ctx *fiber.Ctx) error
}

type versionController struct {
	sessionService service.ISessionService
}

func NewVersionController(sessionService service.ISessionService) IVersionController {
	return &versionController{
		sessionService: sessionService,
	}
}

func (c *versionController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/session/v1/:id/versions")
	h.Use(auth)
	h.Get("", c.List)
	h.Get(":n", c.Show)
	h.Post(":n/restore", c.Restore)
}

func (c *versionController) List(ctx *fiber.Ctx) error {
	res, err := c.sessionService.ListVersions(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list versions", res))
}

func (c *versionController) Show(ctx *fiber.Ctx) error {
	n, err := versionParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.sessionService.GetVersion(ctx.Context(), ctx.Params("id"), n)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get version", res))
}

func (c *versionController) Restore(ctx *fiber.Ctx) error {
	n, err := versionParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.sessionService.RestoreVersion(ctx.Context(), ctx.Params("id"), n)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Version restored", res))
}

func versionParam(ctx *fiber.Ctx) (int, error) {
	n, err := strconv.Atoi(ctx.Params("n"))
	if err != nil || n < 1 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "version number must be a positive integer")
	}
	return n, nil
}
