package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// CredentialStore is the narrow repository over StoredAccountRecord, one
// record per (workspace, platform). Get returns ErrAccountNotFound when absent.
type CredentialStore interface {
	Get(ctx context.Context, key AccountKey) (StoredAccountRecord, error)
	Put(ctx context.Context, record StoredAccountRecord) (StoredAccountRecord, error)
	Delete(ctx context.Context, key AccountKey) error
	ListByWorkspace(ctx context.Context, workspaceID string) ([]StoredAccountRecord, error)
}

// PublishLog records publish attempts. Recording is best effort; a failing
// log never changes a PublishResult.
type PublishLog interface {
	Record(ctx context.Context, attempt PublishAttempt) error
	List(ctx context.Context, filter PublishAttemptFilter) ([]PublishAttempt, error)
}

type CredentialCipher interface {
	Encrypt(credentials PlatformCredentials, tenantID string) (string, error)
	Decrypt(stored string, tenantID string) (PlatformCredentials, error)
	Hash(credentials PlatformCredentials) (string, error)
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}
