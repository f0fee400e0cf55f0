package controller

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"ai-docreview-be/internal/pkg/apperrors"
	"ai-docreview-be/internal/pkg/serverutils"
	"ai-docreview-be/internal/service"
)

type IAnalysisController interface {
	RegisterRoutes(r fiber.Router)
	Analyze(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Document(ctx *fiber.Ctx) error
}

type analysisController struct {
	analysisService service.IAnalysisService
	sessionService  service.ISessionService
}

func NewAnalysisController(
	analysisService service.IAnalysisService,
	sessionService service.ISessionService,
) IAnalysisController {
	return &analysisController{
		analysisService: analysisService,
		sessionService:  sessionService,
	}
}

func (c *analysisController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/analysis/v1")
	h.Post("analyze", c.Analyze)
	h.Get("analyze/:id", c.Status)
	h.Get("documents/:id", c.Document)
}

func (c *analysisController) Analyze(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return apperrors.NewFileValidationError("Missing 'file' upload field")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.NewFileValidationError("Could not read uploaded file")
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return apperrors.NewFileValidationError("Could not read uploaded file")
	}

	res, err := c.analysisService.StartAnalysis(
		ctx.Context(),
		fileBytes,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		ctx.IP(),
	)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Analysis started", res))
}

func (c *analysisController) Status(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperrors.NewSessionNotFound(ctx.Params("id"))
	}

	res, err := c.sessionService.GetStatus(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get analysis status", res))
}

func (c *analysisController) Document(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperrors.NewSessionNotFound(ctx.Params("id"))
	}

	path, documentName, err := c.analysisService.DocumentPath(ctx.Context(), id)
	if err != nil {
		return err
	}

	ctx.Set("Content-Type", "application/pdf")
	ctx.Set("Content-Disposition", `inline; filename="`+documentName+`"`)
	return ctx.SendFile(path)
}
