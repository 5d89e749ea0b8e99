// Package pipeline composes tasks into sequential, parallel and supervised groups.
//
// Every composite is itself a Task, so named pipelines nest freely:
//
//	build := pipeline.Sequential("build", clean, images, scripts, styles, collect, includes)
//	assets := pipeline.Parallel("assets", scripts, styles, images)
//	dev := pipeline.Sequential("dev", scripts, styles, images,
//		pipeline.Supervise("serve", server, watcher))
//
// Sequential stops at the first failing step. Parallel waits for every member and
// returns the first error without canceling siblings. Supervise cancels its members
// as soon as one fails or the caller's context ends. Recover turns a task's error
// into a logged warning.
package pipeline
