// Package orchestrator sequences a kdb build run.
//
// A run moves through idle, downloading, building and done. A download
// failure ends the run before the builder is ever called; a build failure
// leaves the staging area in place so the command can be rerun. The
// orchestrator performs no retries and runs the two steps one after the
// other; parallelism lives inside the collaborators.
package orchestrator
