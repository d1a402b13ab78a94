package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/giftlist/internal/metrics"
	"github.com/Kerhoff/giftlist/internal/models"
)

// DefaultImageTimeout bounds a single image probe.
const DefaultImageTimeout = 5 * time.Second

// ValidationResult is the outcome of probing a gift's image.
type ValidationResult struct {
	Gift    models.Gift
	IsValid bool
	Error   string
}

// ImageValidator confirms that a gift's image URL is loadable.
type ImageValidator struct {
	client  *http.Client
	timeout time.Duration
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewImageValidator creates a validator probing with the given timeout.
// A nil client uses a default http.Client.
func NewImageValidator(client *http.Client, timeout time.Duration, logger *logrus.Logger, m *metrics.Metrics) *ImageValidator {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultImageTimeout
	}
	return &ImageValidator{client: client, timeout: timeout, logger: logger, metrics: m}
}

// Validate probes the image of gift. It never returns an error: network
// failures, timeouts, non-2xx statuses and non-image content types all yield
// IsValid == false.
func (v *ImageValidator) Validate(ctx context.Context, gift models.Gift) ValidationResult {
	err := v.probe(ctx, gift.ImageURL)
	v.metrics.ImageValidation(err == nil)

	if err != nil {
		v.logger.WithFields(logrus.Fields{
			"gift_id": gift.ID,
			"title":   gift.Title,
			"reason":  err.Error(),
		}).Info("Image unavailable, gift omitted")
		return ValidationResult{Gift: gift, IsValid: false, Error: err.Error()}
	}
	return ValidationResult{Gift: gift, IsValid: true}
}

func (v *ImageValidator) probe(ctx context.Context, imageURL string) error {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.CopyN(io.Discard, resp.Body, 512)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "image/") {
		return fmt.Errorf("content type %q is not an image", ct)
	}
	return nil
}
