package main

import (
	"flag"
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/engine"
)

func main() {
	var (
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		gcStress    = flag.Bool("gcstress", false, "Run a collection after every dispatched action")
		queueHint   = flag.Int("queue", 0, "Dispatch queue size hint")
		workers     = flag.Int("workers", 4, "Background goroutines posting work")
		posts       = flag.Int("posts", 25, "Increments posted per goroutine")
	)
	flag.Parse()

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*gcStress, *queueHint); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*gcStress, *queueHint, *workers, *posts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the non-interactive one-shot: set up the bridge, hammer it
// from background goroutines, and print the accounting.
func run(gcStress bool, queueHint, workers, posts int) error {
	eng := engine.NewWithConfig(&engine.Config{QueueHint: queueHint, GCStress: gcStress})
	defer eng.Shutdown()

	var bridge *demoBridge
	var err error
	eng.Do(func(env napigo.Env) {
		bridge, err = newDemoBridge(env, eng)
	})
	if err != nil {
		return fmt.Errorf("bridge setup: %w", err)
	}

	fmt.Printf("Posting %d increments from %d goroutines...\n", workers*posts, workers)

	var wg sync.WaitGroup
	wg.Add(workers * posts)
	for w := 0; w < workers; w++ {
		bridge.postIncrements(posts, &wg)
	}
	wg.Wait()

	s := bridge.stats()
	fmt.Printf("\nCounter value: %v\n", s.Count)
	fmt.Printf("Live pins:     %d\n", s.Pins)
	fmt.Printf("Keep-alive:    %d\n", s.KeepAlive)
	fmt.Printf("Async scopes:  %d\n", s.AsyncScopes)

	n, err := bridge.sendAdd(100)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	fmt.Printf("\nAfter synchronous add(100): %v\n", n)

	bridge.collect()
	fmt.Printf("Pins after collection: %d\n", bridge.stats().Pins)

	// The counter wrapper is still alive at teardown, so the dispose
	// report names exactly one pin. Leak reporting is the point.
	if err := bridge.dispose(); err != nil {
		fmt.Printf("\nDispose report: %v\n", err)
	}
	return nil
}
