package gateway

import (
	"github.com/simrailtools/backend-sub003/feature/livecache"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	handler *Handler
}

// NewFeature creates the gateway feature. archive may be nil when the
// snapshot archive is disabled.
func NewFeature(cache *livecache.Cache, hub *Hub, archive ArchiveSource, log *zap.Logger) *Feature {
	return &Feature{handler: NewHandler(cache, hub, archive, log)}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "gateway"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
