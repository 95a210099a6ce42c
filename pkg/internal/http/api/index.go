package api

import (
	"github.com/afyalink/telecare/pkg/internal/database"
	"github.com/afyalink/telecare/pkg/internal/payments"
	"github.com/afyalink/telecare/pkg/internal/services"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// Dependencies are the core subsystems the API surface glues together.
type Dependencies struct {
	Channel      *services.SignalingChannel
	Calls        *services.CallManager
	Payments     *payments.Orchestrator
	Transactions *database.TransactionStore
}

var src Dependencies

func MapAPIs(app *fiber.App, baseURL string, deps Dependencies) {
	src = deps

	api := app.Group(baseURL).Name("API")
	{
		calls := api.Group("/calls/:room").Name("Calls API")
		{
			calls.Get("/", authMiddleware, listCallRecord)
			calls.Get("/ongoing", authMiddleware, getOngoingCall)
			calls.Post("/", authMiddleware, startCall)
			calls.Delete("/ongoing", authMiddleware, endCall)
			calls.Post("/token", authMiddleware, exchangeCallToken)

			calls.Get("/signals", authMiddleware, listSignal)
			calls.Post("/signals", authMiddleware, newSignal)
		}

		pay := api.Group("/payments").Name("Payments API")
		{
			pay.Post("/", authMiddleware, processPayment)
			pay.Get("/transactions", authMiddleware, listTransaction)
			pay.Get("/transactions/:trxId", authMiddleware, getTransaction)
			pay.Post("/transactions/:trxId/verify", authMiddleware, verifyTransaction)
			pay.Delete("/transactions/:trxId/poll", authMiddleware, cancelTransactionPoll)
		}
	}

	app.Get("/ws/calls/:room", authMiddleware, websocket.New(signalingGateway))
}
