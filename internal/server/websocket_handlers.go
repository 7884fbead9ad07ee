package server

import (
	"log/slog"

	"jobboard/internal/featureflags"
	"jobboard/internal/middleware"
	"jobboard/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// LiveFeedUpgrade admits WebSocket upgrades when the live_feed flag is on for the caller.
func (s *Server) LiveFeedUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.featureFlags.Enabled(featureflags.LiveFeed, c.IP()) {
			return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Feature", featureflags.LiveFeed))
		}
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewValidationError("WebSocket upgrade required"))
		}
		c.Locals("remote", c.IP())
		return c.Next()
	}
}

// LiveFeedHandler streams board events to the connection until it closes.
func (s *Server) LiveFeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		remote, _ := conn.Locals("remote").(string)

		client, err := s.hub.Register(conn, remote)
		if err != nil {
			middleware.Logger.Warn("live feed registration refused",
				slog.String("remote", remote),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
			_ = conn.Close()
			return
		}

		middleware.Logger.Info("live feed client connected", slog.String("remote", remote))

		// the conn returns to fiber's pool when this func exits, so wait for both pumps
		done := make(chan struct{})
		go func() {
			client.WritePump()
			close(done)
		}()
		client.ReadPump()
		<-done
	})
}
