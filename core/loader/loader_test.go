package loader_test

import (
	"errors"
	"testing"

	"github.com/simrailtools/backend-sub003/core/loader"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubFeature struct {
	name    string
	enabled bool
	loadErr error
	loaded  bool
}

func (s *stubFeature) Name() string      { return s.name }
func (s *stubFeature) IsEnabled() bool   { return s.enabled }
func (s *stubFeature) Load(_ fiber.Router) error {
	s.loaded = true
	return s.loadErr
}

func TestManagerLoadAll(t *testing.T) {
	t.Run("LoadsEnabledSkipsDisabled", func(t *testing.T) {
		enabled := &stubFeature{name: "gateway", enabled: true}
		disabled := &stubFeature{name: "archive", enabled: false}

		mgr := loader.NewManager(zap.NewNop())
		mgr.Register(enabled)
		mgr.Register(disabled)

		err := mgr.LoadAll(fiber.New())
		assert.NoError(t, err)
		assert.True(t, enabled.loaded)
		assert.False(t, disabled.loaded)
	})

	t.Run("PropagatesLoadError", func(t *testing.T) {
		failing := &stubFeature{name: "gateway", enabled: true, loadErr: errors.New("boom")}

		mgr := loader.NewManager(zap.NewNop())
		mgr.Register(failing)

		err := mgr.LoadAll(fiber.New())
		assert.ErrorContains(t, err, "failed to load feature gateway")
	})
}
