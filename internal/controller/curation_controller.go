package controller

import (
	"ai-casedraft-be/internal/dto"
	"ai-casedraft-be/internal/pkg/serverutils"
	"ai-casedraft-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ICurationController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Preview(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Toggle(ctx *fiber.Ctx) error
	AddManual(ctx *fiber.Ctx) error
	MoveFragment(ctx *fiber.Ctx) error
	MoveCategory(ctx *fiber.Ctx) error
}

type curationController struct {
	curationService service.ICurationService
}

func NewCurationController(curationService service.ICurationService) ICurationController {
	return &curationController{
		curationService: curationService,
	}
}

func (c *curationController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/session/v1/:id/curation")
	h.Use(auth)
	h.Get("", c.Show)
	h.Post("preview", c.Preview)
	h.Post("fragments", c.AddManual)
	h.Put("fragments/:fid/toggle", c.Toggle)
	h.Put("fragments/:fid/move", c.MoveFragment)
	h.Put("categories/:category/move", c.MoveCategory)
}

func (c *curationController) Preview(ctx *fiber.Ctx) error {
	var req dto.PreviewCurationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.curationService.Preview(ctx.Context(), ctx.Params("id"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Curation loaded", res))
}

func (c *curationController) Show(ctx *fiber.Ctx) error {
	res, err := c.curationService.Get(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get curation", res))
}

func (c *curationController) Toggle(ctx *fiber.Ctx) error {
	var req dto.ToggleFragmentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.curationService.Toggle(ctx.Context(), ctx.Params("id"), ctx.Params("fid"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Fragment updated", res))
}

func (c *curationController) AddManual(ctx *fiber.Ctx) error {
	var req dto.AddFragmentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.curationService.AddManual(ctx.Context(), ctx.Params("id"), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Fragment added", res))
}

func (c *curationController) MoveFragment(ctx *fiber.Ctx) error {
	var req dto.MoveFragmentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.curationService.MoveFragment(ctx.Context(), ctx.Params("id"), ctx.Params("fid"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Fragment moved", res))
}

func (c *curationController) MoveCategory(ctx *fiber.Ctx) error {
	var req dto.MoveCategoryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.curationService.MoveCategory(ctx.Context(), ctx.Params("id"), ctx.Params("category"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Category moved", res))
}
