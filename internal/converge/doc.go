// Package converge drives case folders toward a target document count.
//
// The service's sample method is asynchronous and its read path is
// eventually consistent, so every folder runs a small control loop:
//
//	read count (re-reading while it still shows the pre-sample value)
//	  -> stop if count/target >= tolerance
//	  -> sample min(target-count, MaxSampleSize) more documents
//	  -> repeat
//
// An optional purge phase empties folders that are already above target
// before the loop starts. A Dispatcher runs one loop per folder on a fixed
// pool of workers, and the Orchestrator walks cases one at a time after a
// pre-flight pass has validated all of them.
package converge
