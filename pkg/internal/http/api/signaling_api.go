package api

import (
	"github.com/afyalink/telecare/pkg/internal/http/exts"
	"github.com/afyalink/telecare/pkg/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

func listSignal(c *fiber.Ctx) error {
	user := c.Locals("principal").(Principal)
	roomId := c.Params("room")
	sinceId := c.QueryInt("since", 0)

	messages, err := src.Channel.History(roomId, uint(sinceId))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	// Messages not addressed to the reader stay in the channel, they are
	// just not handed out.
	return c.JSON(lo.Filter(messages, func(item models.SignalingMessage, index int) bool {
		return item.Addressed(user.ID)
	}))
}

func newSignal(c *fiber.Ctx) error {
	user := c.Locals("principal").(Principal)
	roomId := c.Params("room")

	var data struct {
		Type        string         `json:"type" validate:"required,oneof=offer answer ice-candidate hangup"`
		RecipientID string         `json:"recipient_id"`
		Data        map[string]any `json:"data"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	message, err := src.Channel.Publish(models.SignalingMessage{
		RoomID:      roomId,
		Type:        data.Type,
		SenderID:    user.ID,
		RecipientID: data.RecipientID,
		Data:        data.Data,
	})
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(message)
}
