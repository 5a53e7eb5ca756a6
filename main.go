// Package main is the entry point for the resumeflow binaries. It runs
// batch résumé analysis against vacancies with per-organization token
// billing: an HTTP API for submission, polling, export and billing, and
// a background worker that consumes analysis tasks from NATS JetStream.
package main

import "resumeflow/cmd"

func main() {
	cmd.Execute()
}
