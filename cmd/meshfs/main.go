// Command meshfs runs (and administers) a cluster composition node: it
// fans uploads out across a set of partition backends, serves reads
// back from the most-preferred replica holding the file (failing over
// to the next one mid-stream), and tracks partition
// liveness so a dead backend degrades the cluster instead of hanging
// every call against it.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := rootCommand.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
