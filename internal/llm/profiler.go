// In file: internal/llm/profiler.go
package llm

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zeeshanml/math-assistant/internal/api"
	"github.com/zeeshanml/math-assistant/internal/version"
)

const (
	statusOnline   = "online"
	statusDegraded = "degraded"
	profileTTL     = 35 * 24 * time.Hour
)

// ModelProfile tracks performance and reliability metrics for a model.
type ModelProfile struct {
	ModelID           string    `json:"model_id" redis:"model_id"`
	AvgLatencyMS      int64     `json:"avg_latency_ms" redis:"avg_latency_ms"`
	Status            string    `json:"status" redis:"status"`
	ErrorRate         float64   `json:"error_rate" redis:"error_rate"`
	TotalSuccesses    int64     `json:"total_successes" redis:"total_successes"`
	TotalFailures     int64     `json:"total_failures" redis:"total_failures"`
	TotalInputTokens  int64     `json:"total_input_tokens" redis:"total_input_tokens"`
	TotalOutputTokens int64     `json:"total_output_tokens" redis:"total_output_tokens"`
	LastCall          time.Time `json:"last_call" redis:"last_call"`
}

// Profiler records per-model usage in Redis. A nil *Profiler is valid and
// records nothing, which is how the assistant runs without Redis.
type Profiler struct {
	rdb *redis.Client
}

// NewProfiler creates a profiler writing to rdb.
func NewProfiler(rdb *redis.Client) *Profiler {
	return &Profiler{rdb: rdb}
}

// GetProfile retrieves a model's profile. A model that has never been called
// gets an empty, online profile.
func (p *Profiler) GetProfile(ctx context.Context, modelID string) (*ModelProfile, error) {
	profile := &ModelProfile{ModelID: modelID, Status: statusOnline}
	if p == nil {
		return profile, nil
	}

	profileData, err := p.rdb.HGetAll(ctx, version.ProfileKey(modelID)).Result()
	if err != nil {
		return nil, err
	}
	if len(profileData) == 0 {
		return profile, nil
	}

	profile.AvgLatencyMS, _ = strconv.ParseInt(profileData["avg_latency_ms"], 10, 64)
	if s := profileData["status"]; s != "" {
		profile.Status = s
	}
	profile.ErrorRate, _ = strconv.ParseFloat(profileData["error_rate"], 64)
	profile.TotalSuccesses, _ = strconv.ParseInt(profileData["total_successes"], 10, 64)
	profile.TotalFailures, _ = strconv.ParseInt(profileData["total_failures"], 10, 64)
	profile.TotalInputTokens, _ = strconv.ParseInt(profileData["total_input_tokens"], 10, 64)
	profile.TotalOutputTokens, _ = strconv.ParseInt(profileData["total_output_tokens"], 10, 64)
	profile.LastCall, _ = time.Parse(time.RFC3339Nano, profileData["last_call"])
	return profile, nil
}

// UpdateProfileOnSuccess folds a successful call into the model's profile.
// Latency is an exponential moving average.
func (p *Profiler) UpdateProfileOnSuccess(ctx context.Context, modelID string, latency time.Duration, usage api.Usage) {
	if p == nil {
		return
	}
	key := version.ProfileKey(modelID)
	const alpha = 0.1

	err := p.rdb.Watch(ctx, func(tx *redis.Tx) error {
		currentLatencyStr, err := tx.HGet(ctx, key, "avg_latency_ms").Result()
		if err != nil && err != redis.Nil {
			return err
		}
		newLatency := latency.Milliseconds()
		if currentLatencyStr != "" {
			currentLatency, _ := strconv.ParseInt(currentLatencyStr, 10, 64)
			newLatency = int64((alpha * float64(latency.Milliseconds())) + ((1.0 - alpha) * float64(currentLatency)))
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "avg_latency_ms", newLatency)
			return nil
		})
		return err
	}, key)
	if err != nil {
		log.Printf("Error updating latency for %s: %v", modelID, err)
	}

	pipe := p.rdb.Pipeline()
	successes := pipe.HIncrBy(ctx, key, "total_successes", 1)
	failures := pipe.HGet(ctx, key, "total_failures")
	pipe.HIncrBy(ctx, key, "total_input_tokens", int64(usage.PromptTokens))
	pipe.HIncrBy(ctx, key, "total_output_tokens", int64(usage.CompletionTokens))
	pipe.HSet(ctx, key, "model_id", modelID, "status", statusOnline, "last_call", time.Now().Format(time.RFC3339Nano))
	pipe.Expire(ctx, key, profileTTL)

	// A missing failures field yields redis.Nil, which is not an error here.
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		log.Printf("Error in success update pipeline for %s: %v", modelID, err)
		return
	}

	totalFailures, _ := strconv.ParseInt(failures.Val(), 10, 64)
	p.storeErrorRate(ctx, key, successes.Val(), totalFailures)
}

// UpdateProfileOnFailure records a failed call and marks the model degraded.
func (p *Profiler) UpdateProfileOnFailure(ctx context.Context, modelID string) {
	if p == nil {
		return
	}
	key := version.ProfileKey(modelID)
	pipe := p.rdb.Pipeline()
	failures := pipe.HIncrBy(ctx, key, "total_failures", 1)
	successes := pipe.HGet(ctx, key, "total_successes")
	pipe.HSet(ctx, key, "model_id", modelID, "status", statusDegraded, "last_call", time.Now().Format(time.RFC3339Nano))
	pipe.Expire(ctx, key, profileTTL)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		log.Printf("Error in failure update pipeline for %s: %v", modelID, err)
		return
	}

	totalSuccesses, _ := strconv.ParseInt(successes.Val(), 10, 64)
	p.storeErrorRate(ctx, key, totalSuccesses, failures.Val())
}

func (p *Profiler) storeErrorRate(ctx context.Context, key string, successes, failures int64) {
	totalRequests := successes + failures
	if totalRequests == 0 {
		return
	}
	errorRate := float64(failures) / float64(totalRequests)
	if err := p.rdb.HSet(ctx, key, "error_rate", errorRate).Err(); err != nil {
		log.Printf("Error storing error rate under %s: %v", key, err)
	}
}
