package memory

import (
	"context"

	"github.com/c360/pointmap/errors"
)

// Stats summarizes the memory store for operators.
type Stats struct {
	Records        int            `json:"records"`
	TotalSuccesses int            `json:"total_successes"`
	TotalFailures  int            `json:"total_failures"`
	AvgConfidence  float64        `json:"avg_confidence"`
	ByDeviceType   map[string]int `json:"by_device_type"`
}

// Stats returns aggregate counters across all mapping records.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	if s.closed.Load() {
		return nil, errors.WrapFatal(errors.ErrStoreClosed, "memory", "Stats", "query")
	}

	stats := &Stats{ByDeviceType: make(map[string]int)}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(success_count), 0),
		        COALESCE(SUM(failure_count), 0),
		        COALESCE(AVG(confidence), 0)
		 FROM mapping_records`)
	if err := row.Scan(&stats.Records, &stats.TotalSuccesses, &stats.TotalFailures, &stats.AvgConfidence); err != nil {
		return nil, errors.WrapTransient(err, "memory", "Stats", "aggregate query")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT device_type, COUNT(*) FROM mapping_records GROUP BY device_type`)
	if err != nil {
		return nil, errors.WrapTransient(err, "memory", "Stats", "device query")
	}
	defer rows.Close()

	for rows.Next() {
		var deviceType string
		var count int
		if err := rows.Scan(&deviceType, &count); err != nil {
			return nil, errors.WrapTransient(err, "memory", "Stats", "row scan")
		}
		stats.ByDeviceType[deviceType] = count
	}
	return stats, rows.Err()
}
