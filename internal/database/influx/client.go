// Package influx provides the InfluxDB client that stores simulation
// output as time series: one point per block and per final miner record.
package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names
const (
	MeasurementBlocks       = "blocks"
	MeasurementMinerResults = "miner_results"
	MeasurementRuns         = "runs"
)

// Client wraps InfluxDB operations for time-series metrics
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string
	org      string
}

// Config holds InfluxDB connection configuration
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// NewClient creates a new InfluxDB client
func NewClient(cfg *Config) (*Client, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to check InfluxDB health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		client.Close()
		return nil, fmt.Errorf("InfluxDB health check failed: %s", msg)
	}

	return &Client{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
		org:      cfg.Org,
	}, nil
}

// Close closes the InfluxDB connection
func (c *Client) Close() {
	c.client.Close()
}

// Health checks InfluxDB connectivity
func (c *Client) Health(ctx context.Context) error {
	health, err := c.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("health check failed: %s", msg)
	}

	return nil
}

// Write stores points synchronously
func (c *Client) Write(ctx context.Context, points ...*write.Point) error {
	if err := c.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write points: %w", err)
	}
	return nil
}

// Point builders

// Block describes a block for BlockPoint
type Block struct {
	ExperimentID    string
	Pool            string
	RewardScheme    string
	MinerAddress    string
	Sequence        uint64
	SharesPerBlock  uint64
	ReceiverAddress string
	CreditsSum      uint64
	FoundAt         time.Time
}

// BlockPoint builds the point of a block
func BlockPoint(b Block) *write.Point {
	tags := map[string]string{
		"experiment_id": b.ExperimentID,
		"pool":          b.Pool,
		"reward_scheme": b.RewardScheme,
	}

	fields := map[string]interface{}{
		"miner_address":    b.MinerAddress,
		"sequence":         int64(b.Sequence),
		"shares_per_block": int64(b.SharesPerBlock),
		"count":            1,
	}
	if b.ReceiverAddress != "" {
		fields["receiver_address"] = b.ReceiverAddress
		fields["credits_sum"] = int64(b.CreditsSum)
	}

	return write.NewPoint(MeasurementBlocks, tags, fields, b.FoundAt)
}

// MinerResultPoint builds the point of a final miner record
func MinerResultPoint(experimentID, pool, address string, shares, blocks uint64, credits float64, at time.Time) *write.Point {
	tags := map[string]string{
		"experiment_id": experimentID,
		"pool":          pool,
		"miner_address": address,
	}

	fields := map[string]interface{}{
		"shares_count": int64(shares),
		"blocks_mined": int64(blocks),
		"credits":      credits,
	}

	return write.NewPoint(MeasurementMinerResults, tags, fields, at)
}

// RunPoint builds the summary point of a run
func RunPoint(experimentID string, shares, blocks uint64, elapsed time.Duration, at time.Time) *write.Point {
	tags := map[string]string{
		"experiment_id": experimentID,
	}

	fields := map[string]interface{}{
		"shares":     int64(shares),
		"blocks":     int64(blocks),
		"elapsed_ms": float64(elapsed.Nanoseconds()) / 1e6,
	}

	return write.NewPoint(MeasurementRuns, tags, fields, at)
}

// Query methods

// GetBlockCounts returns the number of blocks per pool of an experiment
func (c *Client) GetBlockCounts(ctx context.Context, experimentID string, duration time.Duration) (map[string]int64, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: -%s)
		|> filter(fn: (r) => r._measurement == "%s")
		|> filter(fn: (r) => r.experiment_id == "%s")
		|> filter(fn: (r) => r._field == "count")
		|> group(columns: ["pool"])
		|> sum()
	`, c.bucket, duration.String(), MeasurementBlocks, experimentID)

	result, err := c.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query block counts: %w", err)
	}
	defer func() {
		_ = result.Close()
	}()

	counts := make(map[string]int64)
	for result.Next() {
		record := result.Record()
		pool, _ := record.ValueByKey("pool").(string)
		if count, ok := record.Value().(int64); ok {
			counts[pool] = count
		}
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("error reading query result: %w", result.Err())
	}

	return counts, nil
}
