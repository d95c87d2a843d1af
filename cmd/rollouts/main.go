// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command rollouts drives batched and branching LLM dialogue episodes.
//
// A run spec (YAML) declares a game, the model backends, the player
// bindings, and a queue of episode instances. The batch mode drives
// many episodes to completion through the dynamic batch scheduler; the
// branch mode grows a rollout tree by forking one episode at selected
// turns. Finished runs are persisted to an embedded BadgerDB store and
// can be listed, inspected, exported, and served over HTTP.
//
// Usage:
//
//	rollouts run --spec run.yaml
//	rollouts branch --spec branch.yaml
//	rollouts runs list
//	rollouts runs show <run-id>
//	rollouts runs export <run-id> --out ./export
//	rollouts serve --port 8080
//
// Offline smoke test (no API key needed):
//
//	rollouts run --spec examples/scripted.yaml --json
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(CLIExitError)
	}
}
