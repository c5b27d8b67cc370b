// Package distsage implements distributed mini-batch training of a GraphSAGE
// model over a partitioned graph. One operating-system process runs per
// worker; workers form a collective communication group and execute the same
// number of training iterations per epoch, which the batching package
// guarantees by padding every worker's training identifiers to the maximum
// length observed across the group.
//
// The sub-packages each own one concern:
//
//   - comm: the collective communication group (all-reduce, barrier), with
//     in-process and TCP full-mesh implementations.
//   - batching: batch-count equalization and the epoch batch loader.
//   - partition: access to a worker's local graph shard, with in-memory and
//     SQLite-backed stores.
//   - sampler: layered neighbor sampling producing bipartite message-passing
//     blocks.
//   - model: the GraphSAGE layers, loss, and Adam optimizer.
//   - trainer: the training-loop driver and distributed evaluation.
//   - runstore: the training-run registry (runs, workers, heartbeats, epoch
//     records), with in-memory and Postgres backends.
//   - lifecycle: worker registration and heartbeating over the run store.
//   - metrics: Prometheus metrics for training and collective operations.
package distsage
