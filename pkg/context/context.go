// Package context carries publish run identifiers through context.Context
package context

import (
	"context"
	"time"

	"github.com/dorkodu/pharpub/pkg/logger"
	"github.com/google/uuid"
)

type contextKey int

const (
	buildIDKey contextKey = iota
	jobKey
	startTimeKey
)

// WithBuildID adds a build ID to the context, generating one if empty
func WithBuildID(parent context.Context, buildID string) context.Context {
	if buildID == "" {
		buildID = GenerateBuildID()
	}
	return context.WithValue(parent, buildIDKey, buildID)
}

// GetBuildID retrieves the build ID from context
func GetBuildID(ctx context.Context) string {
	if id, ok := ctx.Value(buildIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown-build"
}

// WithJob adds the job name to the context
func WithJob(parent context.Context, job string) context.Context {
	return context.WithValue(parent, jobKey, job)
}

// GetJob retrieves the job name from context
func GetJob(ctx context.Context) string {
	if job, ok := ctx.Value(jobKey).(string); ok && job != "" {
		return job
	}
	return "unknown-job"
}

// WithStartTime adds the run start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetStartTime retrieves the start time, or now when absent
func GetStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

// GetDuration returns the time elapsed since the start time in context
func GetDuration(ctx context.Context) time.Duration {
	return time.Since(GetStartTime(ctx))
}

// GenerateBuildID creates a new unique build ID
func GenerateBuildID() string {
	return "build_" + uuid.New().String()
}

// EnrichContext adds a build ID when missing and stamps the start time
func EnrichContext(parent context.Context) context.Context {
	ctx := parent
	if GetBuildID(ctx) == "unknown-build" {
		ctx = WithBuildID(ctx, "")
	}
	return WithStartTime(ctx, time.Now())
}

// TracingFields returns the run identifiers as structured log fields
func TracingFields(ctx context.Context) []logger.Field {
	return []logger.Field{
		logger.WithField("build_id", GetBuildID(ctx)),
		logger.WithField("duration_ms", GetDuration(ctx).Milliseconds()),
	}
}
