package coordinator

import (
	"time"

	"github.com/stacklok/poolsync/internal/config"
	"github.com/stacklok/poolsync/internal/docstore"
	"github.com/stacklok/poolsync/internal/optimistic"
	pkgsync "github.com/stacklok/poolsync/internal/sync"
)

// Config holds the document address and timing knobs of a Coordinator
type Config struct {
	// Document is the mirrored document. An empty ID is allowed; the
	// coordinator then only keeps the credential fresh.
	Document docstore.Ref

	PollInterval   time.Duration
	HealthInterval time.Duration

	// CommandTimeout is how long an optimistic value is displayed unconfirmed
	CommandTimeout time.Duration

	// QueueSize bounds the writer task queue
	QueueSize int
}

// ConfigFrom extracts the coordinator settings from the file configuration
func ConfigFrom(cfg *config.Config) Config {
	s := cfg.GetSync()
	return Config{
		Document: docstore.Ref{
			Collection: cfg.Document.GetCollection(),
			ID:         cfg.Document.DocumentID,
		},
		PollInterval:   s.GetPollInterval(),
		HealthInterval: s.GetHealthInterval(),
		CommandTimeout: s.GetCommandTimeout(),
		QueueSize:      s.GetQueueSize(),
	}
}

func (c Config) withDefaults() Config {
	if c.Document.Collection == "" {
		c.Document.Collection = config.DefaultCollection
	}
	if c.PollInterval <= 0 {
		c.PollInterval = pkgsync.DefaultPollInterval
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = pkgsync.DefaultHealthInterval
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = optimistic.DefaultTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = config.DefaultQueueSize
	}
	return c
}
