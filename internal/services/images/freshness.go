package images

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"gorm.io/gorm"

	"github.com/ternarybob/ordermirror/internal/common"
	"github.com/ternarybob/ordermirror/internal/interfaces"
	"github.com/ternarybob/ordermirror/internal/models"
)

// sasTimeLayout is the compact ISO form SAS tokens carry in the se parameter
const sasTimeLayout = "2006-01-02T15:04:05Z"

// Service detects elapsed access-token windows on stored image URLs and
// regenerates usable URLs from the durable base paths. It has no dependency
// on the crawler and only ever rewrites signed-URL fields, never base paths
// or identifiers, so it can run concurrently with an in-flight crawl.
type Service struct {
	db     *gorm.DB
	signer interfaces.Signer
	buffer time.Duration // treat as expired within this window of actual expiry
	ttl    time.Duration // validity window for regenerated URLs
	logger arbor.ILogger
}

// NewService creates an image freshness service
func NewService(db *gorm.DB, signer interfaces.Signer, buffer, ttl time.Duration, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		db:     db,
		signer: signer,
		buffer: buffer,
		ttl:    ttl,
		logger: logger,
	}
}

// IsExpired parses the signed URL's embedded expiry parameter. A URL with
// no expiry parameter is treated as not expired. The safety buffer makes
// soon-to-expire URLs count as expired so consumers never receive a URL
// that dies mid-use.
func (s *Service) IsExpired(signedURL string) bool {
	return IsExpiredAt(signedURL, time.Now(), s.buffer)
}

// IsExpiredAt is the clock-injectable form of IsExpired
func IsExpiredAt(signedURL string, now time.Time, buffer time.Duration) bool {
	if signedURL == "" {
		return false
	}
	u, err := url.Parse(signedURL)
	if err != nil {
		return false
	}
	se := u.Query().Get("se")
	if se == "" {
		return false
	}
	expiry, err := time.Parse(sasTimeLayout, se)
	if err != nil {
		if expiry, err = time.Parse(time.RFC3339, se); err != nil {
			return false
		}
	}
	return !now.Add(buffer).Before(expiry)
}

// Refresh regenerates both signed URLs from their stored base paths. Base
// paths are never touched — they are the durable identity.
func (s *Service) Refresh(asset models.ImageAsset) (models.ImageAsset, error) {
	expiry := time.Now().Add(s.ttl)

	if asset.ThumbnailBasePath != "" {
		signed, err := s.signer.Sign(asset.ThumbnailBasePath, expiry)
		if err != nil {
			return asset, fmt.Errorf("failed to re-sign thumbnail %s: %w", asset.ThumbnailBasePath, err)
		}
		asset.ThumbnailURL = signed
	}
	if asset.HighResBasePath != "" {
		signed, err := s.signer.Sign(asset.HighResBasePath, expiry)
		if err != nil {
			return asset, fmt.Errorf("failed to re-sign high-res %s: %w", asset.HighResBasePath, err)
		}
		asset.HighResURL = signed
	}

	return asset, nil
}

// RefreshOrder refreshes any expired assets on one order and persists the
// rewritten URLs. Returns how many assets were refreshed.
func (s *Service) RefreshOrder(ctx context.Context, order *models.Order) (int, error) {
	refreshed := 0
	for i, asset := range order.Images {
		if !s.IsExpired(asset.ThumbnailURL) && !s.IsExpired(asset.HighResURL) {
			continue
		}
		fresh, err := s.Refresh(asset)
		if err != nil {
			return refreshed, err
		}
		order.Images[i] = fresh
		refreshed++
	}

	if refreshed == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("images", order.Images).Error
	if err != nil {
		return refreshed, fmt.Errorf("failed to persist refreshed images for order %s: %w", order.OrderNumber, err)
	}

	s.logger.Debug().
		Str("order_number", order.OrderNumber).
		Int("refreshed", refreshed).
		Msg("Image URLs refreshed")
	return refreshed, nil
}

// RefreshByOrderNumber is the reactive path: a consumer holding a broken
// signed URL requests a refresh keyed on the order
func (s *Service) RefreshByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		return nil, fmt.Errorf("order %q not found: %w", orderNumber, err)
	}
	if _, err := s.RefreshOrder(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Sweep refreshes expired assets across every order that has images
func (s *Service) Sweep(ctx context.Context) (int, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Where("images IS NOT NULL AND images != '' AND images != '[]'").
		Find(&orders).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load orders for sweep: %w", err)
	}

	total := 0
	for i := range orders {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.RefreshOrder(ctx, &orders[i])
		if err != nil {
			s.logger.Warn().
				Str("order_number", orders[i].OrderNumber).
				Err(err).
				Msg("Sweep skipped order")
			continue
		}
		total += n
	}

	s.logger.Info().
		Int("orders", len(orders)).
		Int("assets_refreshed", total).
		Msg("Image freshness sweep complete")
	return total, nil
}
