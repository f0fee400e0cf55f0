package controller

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"ai-docreview-be/internal/dto"
	"ai-docreview-be/internal/pkg/apperrors"
	"ai-docreview-be/internal/pkg/serverutils"
	"ai-docreview-be/internal/service"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Send(ctx *fiber.Ctx) error
	Transcribe(ctx *fiber.Ctx) error
	VoiceSummary(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
}

func NewChatController(chatService service.IChatService) IChatController {
	return &chatController{
		chatService: chatService,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("", c.Send)
	h.Post("transcribe/:id", c.Transcribe)
	h.Post("voice-summary/:id", c.VoiceSummary)
}

func (c *chatController) Send(ctx *fiber.Ctx) error {
	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.Chat(ctx.Context(), req.SessionId, req.Chat)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send chat", res))
}

func (c *chatController) Transcribe(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperrors.NewSessionNotFound(ctx.Params("id"))
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return apperrors.NewFileValidationError("Missing 'file' upload field")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.NewFileValidationError("Could not read uploaded audio")
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		return apperrors.NewFileValidationError("Could not read uploaded audio")
	}

	res, err := c.chatService.VoiceChat(ctx.Context(), id, audio, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success transcribe audio", res))
}

func (c *chatController) VoiceSummary(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return apperrors.NewSessionNotFound(ctx.Params("id"))
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := ctx.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Invalid request body")
	}

	audio, err := c.chatService.VoiceSummary(ctx.Context(), id, req.Text)
	if err != nil {
		return err
	}

	ctx.Set("Content-Type", "audio/wav")
	ctx.Set("Content-Disposition", `attachment; filename="summary_`+id.String()+`.wav"`)
	return ctx.Send(audio)
}
