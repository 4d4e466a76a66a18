package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/oakmoor/jobsheet-audit/internal/specs"
	"github.com/oakmoor/jobsheet-audit/internal/validation"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// speccheck resolves and lints spec packs without auditing anything, so a
// broken pack is caught before it reaches a batch run.
func main() {
	var (
		specsDir = flag.String("specs", "", "directory of spec pack JSON files (required)")
		strict   = flag.Bool("strict", false, "fail when a pack extends an unregistered ancestor")
	)
	flag.Parse()

	// The report owns stdout, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if *specsDir == "" {
		printError("Error: -specs is required\n")
		os.Exit(2)
	}

	resolver := specs.NewResolver(logger)
	count, err := specs.LoadDir(resolver, *specsDir, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if count == 0 {
		printError("Error: no spec packs found in %s\n", *specsDir)
		os.Exit(1)
	}

	packIDs := flag.Args()
	if len(packIDs) == 0 {
		packIDs = resolver.PackIDs()
	}

	engine := validation.NewEngine(logger)
	opts := specs.ResolveOptions{Strict: *strict}

	failures := 0
	for _, packID := range packIDs {
		resolved, err := resolver.Resolve(packID, opts)
		if err != nil {
			fmt.Printf("%s: FAIL (%v)\n", packID, err)
			failures++
			continue
		}
		if err := engine.LintRules(resolved.ValidationRules); err != nil {
			fmt.Printf("%s@%s: FAIL (%v)\n", resolved.ID, resolved.Version, err)
			failures++
			continue
		}
		fmt.Printf("%s@%s: OK (chain %s, %d fields, %d rules, fingerprint %s)\n",
			resolved.ID,
			resolved.Version,
			strings.Join(resolved.PackChain, " -> "),
			len(resolved.Fields),
			len(resolved.ValidationRules),
			resolved.Fingerprint()[:12])
	}

	fmt.Printf("Checked %d packs, %d failed\n", len(packIDs), failures)
	if failures > 0 {
		os.Exit(1)
	}
}
