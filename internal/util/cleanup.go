package util

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

// InterruptContext returns a context cancelled on SIGINT or SIGTERM. A
// second signal exits immediately.
func InterruptContext(parent context.Context, msg io.Writer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sig)
		select {
		case <-sig:
		case <-ctx.Done():
			return
		}
		if msg != nil {
			_, _ = fmt.Fprintln(msg, "\nInterrupt received. Finishing in-flight requests...")
		}
		cancel()

		<-sig
		os.Exit(1)
	}()

	return ctx, cancel
}

// CleanupTempFiles removes leftovers of interrupted exports in dir and
// returns the removed paths.
func CleanupTempFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var removed []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, TempSuffix) {
			continue
		}
		full := filepath.Join(dir, name)
		if err := os.Remove(full); err == nil {
			removed = append(removed, full)
		}
	}
	return removed
}
