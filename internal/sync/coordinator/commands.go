package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/poolsync/internal/command"
	"github.com/stacklok/poolsync/internal/optimistic"
	"github.com/stacklok/poolsync/internal/otel"
)

// ApplyCommand writes value at path through the optimistic gate of path.
// It returns once the command endpoint accepted the request; the snapshot
// confirms the change later. A failed dispatch reverts the displayed value
// and is returned as a *command.CommandDispatchError or an auth error.
func (c *Coordinator) ApplyCommand(ctx context.Context, path string, value any) error {
	if !c.running() {
		return ErrNotStarted
	}

	ctx, span := otel.StartSpan(ctx, c.tracer, "coordinator.apply_command",
		trace.WithAttributes(otel.AttrPath.String(path), otel.AttrDocumentID.String(c.cfg.Document.ID)),
	)
	defer span.End()

	err := c.gates.Gate(path).Issue(ctx, value, func(ctx context.Context) error {
		return c.dispatch(ctx, path, value)
	})
	if err != nil {
		otel.RecordError(span, err)
		slog.Warn("Command failed", "path", path, "error", err)
		return err
	}

	slog.Info("Command dispatched", "path", path)
	return nil
}

// Display returns the value to show for path: the pending target of an
// unconfirmed command, otherwise the observed value
func (c *Coordinator) Display(path string) any {
	observed, _ := c.state.Lookup(path)
	return c.gates.Display(path, observed)
}

// Pending returns the unconfirmed commands keyed by path
func (c *Coordinator) Pending() map[string]optimistic.PendingCommand {
	return c.gates.Pending()
}

func (c *Coordinator) dispatch(ctx context.Context, path string, value any) error {
	cmd, err := command.New(c.state.Get(), c.cfg.Document.ID, path, value)
	if err != nil {
		return err
	}

	client, err := c.credentials.ValidClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain a valid client: %w", err)
	}
	return c.dispatcher.Send(ctx, client, cmd)
}
