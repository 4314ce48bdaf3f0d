package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"idlewatch/internal/storage"
)

const dayIndexKey = "idlewatch:days"

type dayStore struct {
	client *redis.Client
}

func dayKey(date string) string {
	return fmt.Sprintf("idlewatch:day:%s", date)
}

// Get retrieves the day record for a date
func (s *dayStore) Get(ctx context.Context, date string) (*storage.DayRecord, error) {
	payload, err := s.client.Get(ctx, dayKey(date)).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return parseDayRecord([]byte(payload))
}

// GetMany retrieves the records for the requested dates using a pipeline.
// Dates with no stored record are absent from the result.
func (s *dayStore) GetMany(ctx context.Context, dates []string) (map[string]*storage.DayRecord, error) {
	records := make(map[string]*storage.DayRecord, len(dates))
	if len(dates) == 0 {
		return records, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(dates))

	for i, date := range dates {
		cmds[i] = pipe.Get(ctx, dayKey(date))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	for i, cmd := range cmds {
		payload, err := cmd.Result()
		if err != nil {
			continue
		}

		rec, err := parseDayRecord([]byte(payload))
		if err == nil {
			records[dates[i]] = rec
		}
	}

	return records, nil
}

// All retrieves every stored day record via the date index
func (s *dayStore) All(ctx context.Context) (map[string]*storage.DayRecord, error) {
	dates, err := s.client.SMembers(ctx, dayIndexKey).Result()
	if err != nil {
		return nil, err
	}

	return s.GetMany(ctx, dates)
}

// Save overwrites the record at date and adds the date to the index
func (s *dayStore) Save(ctx context.Context, date string, rec *storage.DayRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode day record: %w", err)
	}

	script := redis.NewScript(saveDayScript)
	keys := []string{dayKey(date), dayIndexKey}
	args := []interface{}{date, string(payload)}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// parseDayRecord converts a stored JSON payload to a DayRecord
func parseDayRecord(payload []byte) (*storage.DayRecord, error) {
	var rec storage.DayRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse day record: %w", err)
	}
	return &rec, nil
}
