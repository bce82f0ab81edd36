// Command amasd runs the AMAS decision daemon: the HTTP API, the reward
// and forgetting-alert cron workers, and the sqlite-backed persistence
// layer, wired together by internal/cli.
package main

import "github.com/vocabamas/amas/internal/cli"

func main() {
	cli.Execute()
}
