package database

import (
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/bardlex/poolsim/internal/database/influx"
	"github.com/bardlex/poolsim/internal/database/postgres"
	"github.com/bardlex/poolsim/internal/database/redis"
	"github.com/bardlex/poolsim/internal/simulator"
)

// BlockRow converts a block event to its PostgreSQL row.
func BlockRow(ev simulator.BlockEvent) *postgres.BlockEvent {
	meta := ev.Metadata.Block()
	row := &postgres.BlockEvent{
		ID:             ev.ID,
		ExperimentID:   ev.ExperimentID,
		Sequence:       int64(ev.Sequence),
		Pool:           ev.Pool,
		RewardScheme:   meta.RewardScheme,
		MinerAddress:   meta.MinerAddress,
		SharesPerBlock: int64(meta.SharesPerBlock),
		FoundAt:        ev.FoundAt,
	}

	if qb, ok := ev.QB(); ok {
		receiver := qb.ReceiverAddress
		balance := int64(qb.CreditBalanceReceiver)
		reset := int64(qb.ResetBalanceReceiver)
		prop := qb.PropCreditsLost
		sum := int64(qb.CreditsSum)

		row.ReceiverAddress = &receiver
		row.CreditBalanceReceiver = &balance
		row.ResetBalanceReceiver = &reset
		row.PropCreditsLost = &prop
		row.CreditsSum = &sum
	}
	return row
}

// ExperimentRow converts a result to its summary row.
func ExperimentRow(r *simulator.Result) *postgres.Experiment {
	return &postgres.Experiment{
		ID:         r.ExperimentID,
		Seed:       r.Seed,
		Shares:     int64(r.Shares),
		Blocks:     int64(r.Blocks),
		ElapsedMs:  float64(r.Elapsed.Nanoseconds()) / 1e6,
		FinishedAt: r.FinishedAt,
	}
}

// MinerRows flattens the records of every pool.
func MinerRows(r *simulator.Result) []*postgres.MinerResult {
	var rows []*postgres.MinerResult
	for _, p := range r.Pools {
		for _, rec := range p.Records {
			rows = append(rows, &postgres.MinerResult{
				ExperimentID: r.ExperimentID,
				Pool:         p.Name,
				MinerAddress: rec.Address,
				SharesCount:  int64(rec.SharesCount),
				BlocksMined:  int64(rec.BlocksMined),
				Credits:      rec.Credits,
			})
		}
	}
	return rows
}

// Leaderboard returns the credits of a pool's records.
func Leaderboard(p simulator.PoolResult) []redis.Credit {
	out := make([]redis.Credit, len(p.Records))
	for i, rec := range p.Records {
		out[i] = redis.Credit{Address: rec.Address, Credits: rec.Credits}
	}
	return out
}

// InfluxBlock converts a block event for the blocks measurement.
func InfluxBlock(ev simulator.BlockEvent) influx.Block {
	meta := ev.Metadata.Block()
	b := influx.Block{
		ExperimentID:   ev.ExperimentID,
		Pool:           ev.Pool,
		RewardScheme:   meta.RewardScheme,
		MinerAddress:   meta.MinerAddress,
		Sequence:       ev.Sequence,
		SharesPerBlock: meta.SharesPerBlock,
		FoundAt:        ev.FoundAt,
	}
	if qb, ok := ev.QB(); ok {
		b.ReceiverAddress = qb.ReceiverAddress
		b.CreditsSum = qb.CreditsSum
	}
	return b
}

// InfluxResultPoints returns the run summary and one point per record.
func InfluxResultPoints(r *simulator.Result) []*write.Point {
	points := []*write.Point{
		influx.RunPoint(r.ExperimentID, r.Shares, r.Blocks, r.Elapsed, r.FinishedAt),
	}
	for _, p := range r.Pools {
		for _, rec := range p.Records {
			points = append(points, influx.MinerResultPoint(
				r.ExperimentID, p.Name, rec.Address, rec.SharesCount, rec.BlocksMined, rec.Credits, r.FinishedAt,
			))
		}
	}
	return points
}
