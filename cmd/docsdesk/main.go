// Command docsdesk runs the user-administration server of the document
// service and the operator tools that talk to it.
package main

import (
	"fmt"
	"os"

	"github.com/docsdesk/docsdesk/cmd/docsdesk/cli"
)

// Set via -ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := cli.Execute(version, commit, date); err != nil {
		fmt.Fprintln(os.Stderr, "docsdesk:", err)
		os.Exit(1)
	}
}
