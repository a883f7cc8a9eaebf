// Package reconcile turns validated import rows into subscriber-store
// mutations.
//
// The reconciler is the only import-flow writer of subscribers. It honors the
// job's duplicate-handling policy and validation threshold, isolates row
// failures, and persists a per-row audit result before moving on, so a crash
// mid-job leaves a resumable trail.
//
// Collaborators are consumed through interfaces: the validation oracle is an
// opaque scoring service, and the stores are backed by repository/postgres/
// in production and in-memory fakes in tests.
package reconcile
