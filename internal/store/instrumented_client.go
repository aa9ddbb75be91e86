package store

import (
	"context"

	"github.com/italolelis/manifest_mirror/internal/telemetry"
)

// InstrumentedClient wraps a Client with telemetry.
type InstrumentedClient struct {
	client    Client
	telemetry *telemetry.Telemetry
	storeType string
}

// NewInstrumentedClient creates a new instrumented store client.
func NewInstrumentedClient(client Client, tel *telemetry.Telemetry, storeType string) *InstrumentedClient {
	return &InstrumentedClient{
		client:    client,
		telemetry: tel,
		storeType: storeType,
	}
}

// Probe performs the existence check with telemetry.
func (c *InstrumentedClient) Probe(ctx context.Context, loc Locator) (ProbeResult, error) {
	var result ProbeResult

	var err error

	instrumentedErr := c.telemetry.InstrumentClientOperation(ctx, c.storeType, "probe", func(ctx context.Context) error {
		result, err = c.client.Probe(ctx, loc)

		return err
	})

	if instrumentedErr != nil {
		return result, instrumentedErr
	}

	c.telemetry.RecordProbe(ctx, result.Status.String())

	return result, nil
}

// Fetch downloads an object with telemetry.
func (c *InstrumentedClient) Fetch(ctx context.Context, loc Locator, targetPath string) (int64, error) {
	var written int64

	var err error

	instrumentedErr := c.telemetry.InstrumentClientOperation(ctx, c.storeType, "fetch", func(ctx context.Context) error {
		written, err = c.client.Fetch(ctx, loc, targetPath)

		return err
	})

	if instrumentedErr != nil {
		return written, instrumentedErr
	}

	c.telemetry.AddBytesFetched(ctx, written)

	return written, nil
}

// List enumerates objects under a prefix with telemetry.
func (c *InstrumentedClient) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var result []ObjectInfo

	var err error

	instrumentedErr := c.telemetry.InstrumentClientOperation(ctx, c.storeType, "list", func(ctx context.Context) error {
		result, err = c.client.List(ctx, bucket, prefix)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}
