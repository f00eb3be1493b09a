// Command corral runs ad-hoc commands, fact gathering and maintenance tasks
// across a fleet of servers through ansible-runner.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(defaultApp()).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var he *hostFailureError
		if errors.As(err, &he) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
