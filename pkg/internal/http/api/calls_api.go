package api

import (
	"github.com/afyalink/telecare/pkg/internal/models"
	"github.com/afyalink/telecare/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

func listCallRecord(c *fiber.Ctx) error {
	take := c.QueryInt("take", 10)
	offset := c.QueryInt("offset", 0)
	roomId := c.Params("room")

	if records, err := services.ListCallRecord(roomId, take, offset); err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	} else {
		return c.JSON(records)
	}
}

func getOngoingCall(c *fiber.Ctx) error {
	roomId := c.Params("room")

	if record, err := services.GetOngoingCallRecord(roomId); err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	} else {
		return c.JSON(record)
	}
}

func startCall(c *fiber.Ctx) error {
	user := c.Locals("principal").(Principal)
	roomId := c.Params("room")

	record, err := services.NewCallRecord(roomId, user.ID, user.Name)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(record)
}

func endCall(c *fiber.Ctx) error {
	user := c.Locals("principal").(Principal)
	roomId := c.Params("room")

	record, err := services.GetOngoingCallRecord(roomId)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if record.FounderID != user.ID {
		return fiber.NewError(fiber.StatusForbidden, "only the call founder can end this call")
	}

	if record, err := services.EndCallRecord(record); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	} else {
		// Best-effort hangup broadcast, the record is already closed.
		_, _ = src.Channel.Publish(models.SignalingMessage{
			RoomID:   roomId,
			Type:     models.SignalingTypeHangup,
			SenderID: user.ID,
			Data:     map[string]any{"reason": "call ended"},
		})

		return c.JSON(record)
	}
}

func exchangeCallToken(c *fiber.Ctx) error {
	user := c.Locals("principal").(Principal)
	roomId := c.Params("room")

	if _, err := services.GetOngoingCallRecord(roomId); err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	tk, err := services.CreateCallToken(roomId, user.ID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	} else {
		return c.JSON(fiber.Map{
			"token": tk,
		})
	}
}
