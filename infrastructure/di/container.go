package di

import (
	"go.uber.org/zap"

	"sitemap-backend/application/commands/bus"
	"sitemap-backend/application/ports"
	querybus "sitemap-backend/application/queries/bus"
	"sitemap-backend/application/services"
	"sitemap-backend/domain/services/layout"
	"sitemap-backend/infrastructure/config"
	"sitemap-backend/interfaces/http/rest"
	"sitemap-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	LogLevel   zap.AtomicLevel
	Metrics    *observability.Collector
	NodeStore  ports.NodeStore
	Sessions   ports.SessionStore
	Engine     *layout.Engine
	Editor     *services.EditorService
	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus
	Router     *rest.Router
}

// ApplyConfig pushes the hot-reloadable parts of next into the running
// container: the log level and the layout geometry
func (c *Container) ApplyConfig(next *config.Config) {
	if lvl, err := zap.ParseAtomicLevel(next.LogLevel); err == nil && lvl.Level() != c.LogLevel.Level() {
		c.LogLevel.SetLevel(lvl.Level())
		c.Logger.Info("Log level changed", zap.String("level", lvl.Level().String()))
	}
	opts := layout.OptionsFromConfig(next.Domain())
	if opts != c.Engine.Options() {
		c.Engine.SetOptions(opts)
		c.Logger.Info("Layout options changed",
			zap.Float64("node_width", opts.NodeWidth),
			zap.Float64("node_height", opts.NodeHeight),
			zap.Float64("rank_spacing", opts.RankSpacing),
			zap.Float64("node_spacing", opts.NodeSpacing),
		)
	}
	c.Config = next
}
