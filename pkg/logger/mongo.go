package logger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/event"
)

// MongoMonitor logs failed and slow commands sent to MongoDB.
type MongoMonitor struct {
	SlowThreshold time.Duration

	mu      sync.Mutex
	started map[int64]string
}

func NewMongoMonitor(slowThreshold time.Duration) *MongoMonitor {
	return &MongoMonitor{
		SlowThreshold: slowThreshold,
		started:       make(map[int64]string),
	}
}

// CommandMonitor returns the driver hooks for options.Client().SetMonitor.
func (m *MongoMonitor) CommandMonitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Started:   m.onStarted,
		Succeeded: m.onSucceeded,
		Failed:    m.onFailed,
	}
}

func (m *MongoMonitor) onStarted(_ context.Context, e *event.CommandStartedEvent) {
	m.mu.Lock()
	m.started[e.RequestID] = e.DatabaseName
	m.mu.Unlock()
}

func (m *MongoMonitor) pop(requestID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	db := m.started[requestID]
	delete(m.started, requestID)
	return db
}

func (m *MongoMonitor) onSucceeded(_ context.Context, e *event.CommandSucceededEvent) {
	db := m.pop(e.RequestID)
	if m.SlowThreshold == 0 || e.Duration <= m.SlowThreshold {
		return
	}
	Log.Warn("Slow Mongo command",
		slog.String("command", e.CommandName),
		slog.String("database", db),
		slog.Duration("elapsed", e.Duration),
	)
}

func (m *MongoMonitor) onFailed(_ context.Context, e *event.CommandFailedEvent) {
	db := m.pop(e.RequestID)
	Log.Error("Mongo command failed",
		slog.String("command", e.CommandName),
		slog.String("database", db),
		slog.Duration("elapsed", e.Duration),
		slog.String("error", e.Failure),
	)
}
