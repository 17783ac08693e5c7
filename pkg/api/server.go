package api

import (
	"sort"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/open-teleop/codelets/pkg/channel"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/sight"
)

// Deps are the application parts served over HTTP. Nil members disable
// their routes.
type Deps struct {
	AppName     string
	Nodes       NodeLister
	Params      ParamStore
	Sight       *sight.Store
	Hub         *channel.Hub
	Diagnostics fiber.Handler
	Logger      customlog.Logger
}

// NewServer builds the fiber app with every route registered.
func NewServer(deps Deps) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = customlog.Discard()
	}

	app := fiber.New(fiber.Config{
		AppName:               deps.AppName,
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(logger.New(logger.Config{
		Next: func(c *fiber.Ctx) bool { return websocket.IsWebSocketUpgrade(c) },
	}))
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": deps.AppName,
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	api := app.Group("/api")
	if deps.Diagnostics != nil {
		api.Get("/diagnostics", deps.Diagnostics)
	}

	v1 := app.Group("/api/v1")
	if deps.Nodes != nil {
		v1.Get("/nodes", func(c *fiber.Ctx) error {
			return c.JSON(deps.Nodes.NodeInfos())
		})
	}
	if deps.Params != nil {
		RegisterParamRoutes(v1, deps.Params, deps.Logger)
	}
	if deps.Sight != nil {
		RegisterSightRoutes(v1, deps.Sight, deps.Logger)
	}
	if deps.Hub != nil {
		RegisterChannelRoutes(v1, deps.Hub, deps.Logger)
	}

	return app
}

// customErrorHandler renders every error as {"error": ...}.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// RegisterSightRoutes serves the latest shown values and a live stream.
func RegisterSightRoutes(router fiber.Router, store *sight.Store, logger customlog.Logger) {
	group := router.Group("/sight")

	group.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(store.Snapshot())
	})
	group.Use("/ws", requireUpgrade)
	group.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		SightWebSocketHandler(conn, store, logger)
	}))
	group.Get("/:node", func(c *fiber.Ctx) error {
		values, ok := store.Node(c.Params("node"))
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no values shown by node "+c.Params("node"))
		}
		return c.JSON(values)
	})
}

// RegisterChannelRoutes lists channels and accepts injected messages.
func RegisterChannelRoutes(router fiber.Router, hub *channel.Hub, logger customlog.Logger) {
	group := router.Group("/channels")

	group.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(channelStatuses(hub))
	})
	group.Get("/:node/:tag/ws", func(c *fiber.Ctx) error {
		name := channel.ChannelName(c.Params("node"), c.Params("tag"))
		e, ok := hub.Endpoint(name)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "unknown channel "+name)
		}
		if e.Direction() != channel.DirectionRx {
			return fiber.NewError(fiber.StatusBadRequest, "channel "+name+" does not accept messages")
		}
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return websocket.New(func(conn *websocket.Conn) {
			ChannelWebSocketHandler(conn, hub, e, logger)
		})(c)
	})
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func channelStatuses(hub *channel.Hub) []ChannelStatus {
	stats := hub.Registry()
	names := stats.GetAllChannels()
	statuses := make([]ChannelStatus, 0, len(names))
	for _, name := range names {
		info, ok := stats.GetChannelInfo(name)
		if !ok {
			continue
		}
		statuses = append(statuses, ChannelStatus{
			Name:         info.Name,
			MessageType:  info.MessageType,
			Direction:    string(info.Direction),
			Count:        info.StatCount,
			Dropped:      info.Dropped,
			LastReceived: info.LastReceived,
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}
