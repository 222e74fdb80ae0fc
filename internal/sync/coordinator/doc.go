// Package coordinator composes the credential manager, the push channel, the
// background loops and the state store into one synchronizer for a single
// remote document.
//
// # Architecture
//
// The coordinator separates concerns between:
//
//   - internal/sync: the reconciliation poller and the health monitor
//   - internal/sync/subscription: the push channel
//   - internal/store: the snapshot and the single writer goroutine
//   - internal/optimistic: the displayed value of written fields
//   - internal/sync/coordinator: lifecycle and the public read/write API
//
// # Usage Example
//
//	credentials := auth.NewManager(identity, email, password)
//	docs := docstore.New(httpClient, storeURL, listenURL)
//	dispatcher := command.NewDispatcher(httpClient, endpoint)
//
//	c := coordinator.New(credentials, docs, dispatcher, coordinator.ConfigFrom(cfg))
//	if err := c.Start(ctx); err != nil {
//	    return err
//	}
//	defer c.Shutdown(context.Background())
//
//	temperature, _ := c.Get("main.temperature")
//	err := c.ApplyCommand(ctx, "light.status", 1)
//
// # Startup
//
// Start signs in, loads the document with one full fetch, opens the push
// channel and only then launches the background goroutines. A sign-in or
// fetch failure is returned to the caller; a push channel that cannot be
// opened leaves the coordinator Degraded and the health monitor retries.
//
// # Shutdown
//
// Shutdown stops the periodic loops first, then closes the push channel,
// then stops the writer and finally drops the credential.
//
// # Error Handling
//
// Failures inside background loops are logged and the loop waits for its
// next tick. Only Start and ApplyCommand return errors to their callers.
package coordinator
