package main

import (
	"os"
)

// Exit codes: 0 clean, 1 issues found, 2 tool error, 3 invalid config.
const (
	exitClean       = 0
	exitIssuesFound = 1
	exitToolError   = 2
	exitBadInput    = 3
)

func main() {
	os.Exit(run())
}
