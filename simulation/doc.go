// Package simulation provides a synthetic load generator that simulates the lifecycle
// of alarm and warning events against a record-keeping backend.
//
// The package is built from a small set of cooperating parts:
//   - Catalog: the immutable, indexable list of threshold entries (alarm- or warning-typed)
//   - Tracker: which entries currently have an open event, and the Opening/Closing Mode
//   - Producer: a Gaussian-jittered timing loop that decides when the next event fires,
//     picks a target entry and enqueues an Action
//   - Queue: an unbounded FIFO between the producer and the dispatcher
//   - Dispatcher: drains up to MaxTaskCount actions per tick and runs them in parallel,
//     recording per-action latency
//   - Coordinator: wires everything and exposes Start/Stop/Wait
//
// The backend is consumed through the Backend interface; the PostgreSQL implementation
// lives in the postgresbackend sub-package.
//
// Common usage pattern:
//
//	coordinator, err := simulation.NewCoordinator(
//		params,
//		catalog,
//		backend,
//		simulation.WithLogger(logger),
//		simulation.WithLatencySink(simulation.NewFileLatencySink(outputDir)),
//	)
//	if err != nil {
//		// handle error
//	}
//
//	coordinator.Start(ctx)
//	<-signals
//	coordinator.Stop()
package simulation
