package api

import (
	"github.com/afyalink/telecare/pkg/internal/http/exts"
	"github.com/afyalink/telecare/pkg/internal/models"
	"github.com/afyalink/telecare/pkg/internal/payments"
	"github.com/gofiber/fiber/v2"
)

func processPayment(c *fiber.Ctx) error {
	user := c.Locals("principal").(Principal)

	var request payments.Request
	if err := exts.BindAndValidate(c, &request); err != nil {
		return err
	}
	request.PayerID = user.ID
	if len(request.PayerName) == 0 {
		request.PayerName = user.Name
	}

	outcome, err := src.Payments.ProcessPayment(c.Context(), request)
	if err != nil {
		status := fiber.StatusPaymentRequired
		if payments.IsValidationError(err) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(outcome)
	}

	return c.JSON(outcome)
}

func listTransaction(c *fiber.Ctx) error {
	user := c.Locals("principal").(Principal)
	take := c.QueryInt("take", 20)
	offset := c.QueryInt("offset", 0)

	payerId := user.ID
	if user.Role == "admin" {
		payerId = c.Query("payer", "")
	}

	if transactions, err := src.Transactions.List(payerId, take, offset); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	} else {
		return c.JSON(transactions)
	}
}

// canManageTransaction gates per-transaction operations: payers touch
// their own attempts, admins touch any.
func canManageTransaction(user Principal, trx models.Transaction) bool {
	return trx.PayerID == user.ID || user.Role == "admin"
}

func getTransaction(c *fiber.Ctx) error {
	user := c.Locals("principal").(Principal)
	trxId, err := c.ParamsInt("trxId")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid transaction id")
	}

	trx, err := src.Transactions.Get(uint(trxId))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if !canManageTransaction(user, trx) {
		return fiber.NewError(fiber.StatusForbidden, "this transaction belongs to someone else")
	}

	return c.JSON(trx)
}

func verifyTransaction(c *fiber.Ctx) error {
	user := c.Locals("principal").(Principal)
	trxId, err := c.ParamsInt("trxId")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid transaction id")
	}

	trx, err := src.Transactions.Get(uint(trxId))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if !canManageTransaction(user, trx) {
		return fiber.NewError(fiber.StatusForbidden, "this transaction belongs to someone else")
	}

	var data struct {
		ReferenceNumber string `json:"reference_number" validate:"required"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	outcome, err := src.Payments.VerifyPayment(trx.ID, data.ReferenceNumber)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	return c.JSON(outcome)
}

func cancelTransactionPoll(c *fiber.Ctx) error {
	user := c.Locals("principal").(Principal)
	trxId, err := c.ParamsInt("trxId")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid transaction id")
	}

	trx, err := src.Transactions.Get(uint(trxId))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if !canManageTransaction(user, trx) {
		return fiber.NewError(fiber.StatusForbidden, "this transaction belongs to someone else")
	}

	src.Payments.CancelPoll(trx.ID)
	return c.SendStatus(fiber.StatusOK)
}
