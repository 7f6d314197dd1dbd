// Command migrate runs the batch re-encryption job for one entity class
// directly against the data directory, without the HTTP server. The at-rest
// key comes from ATREST_KEY, or is prompted for when stdin is a terminal.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/deshpanderitwik/temenos-sub000/internal/domain"
	"github.com/deshpanderitwik/temenos-sub000/internal/migrate"
	"github.com/deshpanderitwik/temenos-sub000/internal/store"
	"github.com/deshpanderitwik/temenos-sub000/pkg/crypto"
)

func main() {
	dataPath := flag.String("data", "/data/records", "Data root directory")
	className := flag.String("class", "", "Entity class to migrate (conversations, narratives, system-prompts, contexts, images)")
	statusOnly := flag.Bool("status", false, "Report migration status without rewriting anything")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	class, err := domain.ParseEntityClass(*className)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	key, err := resolveKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cipher, err := crypto.New(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	job := migrate.NewJob(cipher, logger)
	ctx := context.Background()

	var out interface{}
	if class == domain.ClassImages {
		images, err := store.NewImages(*dataPath, cipher, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if *statusOnly {
			out, err = job.StatusImages(ctx, images)
		} else {
			out, err = job.RunImages(ctx, images)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	} else {
		dir := filepath.Join(*dataPath, string(class))
		if *statusOnly {
			out, err = job.StatusDir(ctx, class, dir)
		} else {
			out, err = job.RunDir(ctx, class, dir)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)

	if result, ok := out.(*migrate.Result); ok && result.ErrorCount > 0 {
		os.Exit(1)
	}
}

// resolveKey reads the at-rest key from the environment, falling back to an
// interactive no-echo prompt when a terminal is attached.
func resolveKey() (string, error) {
	if key := os.Getenv("ATREST_KEY"); key != "" {
		return key, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("ATREST_KEY not set and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "at-rest key (hex): ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read key: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
