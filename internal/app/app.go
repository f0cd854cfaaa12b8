// -----------------------------------------------------------------------
// Last Modified: Monday, 6th July 2026 2:18:44 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"gorm.io/gorm"

	"github.com/ternarybob/ordermirror/internal/common"
	"github.com/ternarybob/ordermirror/internal/interfaces"
	"github.com/ternarybob/ordermirror/internal/services/images"
	"github.com/ternarybob/ordermirror/internal/storage"
)

// App holds the shared dependencies for serve mode
type App struct {
	Config *common.Config
	Logger arbor.ILogger
	DB     *gorm.DB
	Images *images.Service
}

// New opens storage, provisions the organization and tag catalog, and wires
// the image freshness service
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	db, err := storage.Open(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	if err := storage.Bootstrap(db, config, logger); err != nil {
		return nil, fmt.Errorf("bootstrap failed: %w", err)
	}

	// The real signing contract belongs to the storage provider; the mock
	// signer is a development-only stand-in and never runs in production.
	var imageSvc *images.Service
	if config.IsProduction() {
		logger.Warn().Msg("No production URL signer configured, image refresh disabled")
	} else {
		var signer interfaces.Signer = images.NewMockSigner()
		imageSvc = images.NewService(db, signer, config.RefreshBuffer(), config.Images.SignedURLTTL, logger)
	}

	return &App{
		Config: config,
		Logger: logger,
		DB:     db,
		Images: imageSvc,
	}, nil
}
