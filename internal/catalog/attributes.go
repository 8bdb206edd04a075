package catalog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/citysdk/layercatalog/internal/webservice"
)

// Validity describes how fresh a layer's data is: realtime layers carry
// an update rate, the others a validity window.
type Validity struct {
	Realtime   bool
	UpdateRate *int64
	Window     string
}

// IsRealtime reports the layer's realtime flag
func (c *Catalog) IsRealtime(ctx context.Context, id int64) (bool, error) {
	l, err := c.layer(ctx, id)
	if err != nil {
		return false, err
	}
	return l.Realtime, nil
}

// IsWebservice reports whether the layer's data comes from a webservice.
// The namespace layer never does, whatever its configured URL.
func (c *Catalog) IsWebservice(ctx context.Context, id int64) (bool, error) {
	l, err := c.layer(ctx, id)
	if err != nil {
		return false, err
	}
	if l.Name == ReservedNamespaceLayer {
		return false, nil
	}
	return l.Webservice != "", nil
}

// WebserviceURL returns the configured webservice URL, possibly empty
func (c *Catalog) WebserviceURL(ctx context.Context, id int64) (string, error) {
	l, err := c.layer(ctx, id)
	if err != nil {
		return "", err
	}
	return l.Webservice, nil
}

// Validity returns the realtime flag with the update rate or validity window
func (c *Catalog) Validity(ctx context.Context, id int64) (Validity, error) {
	l, err := c.layer(ctx, id)
	if err != nil {
		return Validity{}, err
	}
	if l.Realtime {
		return Validity{Realtime: true, UpdateRate: l.UpdateRate}, nil
	}
	return Validity{Window: l.Validity}, nil
}

// DataTimeout is the update rate of the layer in milliseconds, or the
// configured default when it has none
func (c *Catalog) DataTimeout(ctx context.Context, id int64) (time.Duration, error) {
	l, err := c.layer(ctx, id)
	if err != nil {
		return 0, err
	}
	if l.UpdateRate == nil || *l.UpdateRate <= 0 {
		return c.config.DefaultDataTimeout, nil
	}
	return time.Duration(*l.UpdateRate) * time.Millisecond, nil
}

// GetData fetches live data for a node from the layer's webservice,
// bounded by DataTimeout
func (c *Catalog) GetData(ctx context.Context, id int64, nodeID string, data map[string]interface{}) (map[string]interface{}, error) {
	ok, err := c.IsWebservice(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotWebservice, id)
	}
	if c.loader == nil {
		return nil, fmt.Errorf("%w: no loader configured", ErrNotWebservice)
	}

	url, err := c.WebserviceURL(ctx, id)
	if err != nil {
		return nil, err
	}
	timeout, err := c.DataTimeout(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := c.loader.Load(ctx, webservice.Request{
		URL:     url,
		LayerID: id,
		NodeID:  nodeID,
		Data:    data,
	})
	if err != nil {
		c.logger.Warn("webservice fetch failed",
			zap.Int64("layer_id", id),
			zap.String("node_id", nodeID),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil, err
	}
	return out, nil
}
