package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/alecthomas/digen/internal/analyser"
	"github.com/alecthomas/digen/internal/flock"
	"github.com/alecthomas/digen/internal/generator"
	"github.com/alecthomas/digen/internal/logging"
	"github.com/alecthomas/digen/internal/model"
	"github.com/alecthomas/digen/internal/output"
	"github.com/alecthomas/errors"
	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	"github.com/kballard/go-shellquote"
)

var cli struct {
	Version     kong.VersionFlag   `help:"Print the version and exit."`
	Config      kong.ConfigFlag    `help:"Load defaults from this TOML file." placeholder:"FILE"`
	Chdir       kong.ChangeDirFlag `help:"Change to this directory before running." placeholder:"DIR" short:"C"`
	Debug       bool               `help:"Enable debug logging (shortcut for --log-level=debug)."`
	Log         logging.Config     `embed:"" prefix:"log-"`
	Tags        []string           `help:"Tags to enable during type analysis (will also be read from $GOFLAGS)." placeholder:"TAG"`
	OutputTags  []string           `help:"Tags to add to generated code." placeholder:"TAG"`
	Output      string             `help:"Name of the file generated in each package." default:"${output}"`
	Naming      generator.Naming   `help:"Accessor naming style (${enum})." enum:"lower,snake,go" default:"lower"`
	Check       bool               `help:"Do not write files, fail with a diff if generated code is out of date." xor:"action"`
	List        bool               `help:"List injectable types and containers." xor:"action"`
	LockTimeout time.Duration      `help:"How long to wait for concurrent runs in the same module." default:"30s"`
	Patterns    []string           `help:"Packages to generate code for." arg:"" optional:"" default:"."`
}

func main() {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		version = info.Main.Version
	}
	kctx := kong.Parse(&cli,
		kong.Description("Generate dependency injection providers, accessors and constructors from //di: directives."),
		kong.Vars{"version": version, "output": generator.DefaultOutput},
		kong.Configuration(kongtoml.Loader, "digen.toml", "~/.config/digen.toml"),
	)
	if cli.Debug {
		cli.Log.Level = slog.LevelDebug
	}
	logger := logging.New(os.Stderr, cli.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, kctx.Stdout, logger)
	cancel()
	kctx.FatalIfErrorf(err)
}

func run(ctx context.Context, stdout io.Writer, logger *slog.Logger) error {
	tags := analysisTags(cli.Tags, os.Getenv("GOFLAGS"))

	result, err := analyser.Analyse(cli.Patterns, analyser.WithTags(tags...), analyser.WithLogger(logger))
	if err != nil {
		return err
	}

	if cli.List {
		list(stdout, result)
		return result.Diagnostics.Err()
	}

	files, genErr := generator.Generate(result,
		generator.WithTags(cli.OutputTags...),
		generator.WithNaming(cli.Naming),
		generator.WithOutput(cli.Output),
		generator.WithLogger(logger),
	)
	var diags model.Diagnostics
	if genErr != nil && !errors.As(genErr, &diags) {
		return genErr
	}

	dirs, err := staleDirs(result)
	if err != nil {
		return err
	}

	release, err := flock.Acquire(ctx, lockPath(result.Root), cli.LockTimeout)
	if err != nil {
		return errors.Errorf("another digen run is in progress: %w", err)
	}
	defer release() //nolint:errcheck

	root := output.Dir(result.Root)
	changes, err := output.Changes(root, files, dirs, cli.Output)
	if err != nil {
		return err
	}
	pending := output.Pending(changes)
	for _, change := range changes {
		if change.Action == output.Unchanged {
			logger.Debug("Generated file is up to date", "file", change.Path)
		}
	}

	if cli.Check {
		for _, change := range pending {
			fmt.Fprint(stdout, change.Diff())
		}
		if len(pending) > 0 {
			return errors.Join(genErr, errors.Errorf("%d generated file(s) out of date, run go generate", len(pending)))
		}
		return genErr
	}

	if err := output.Apply(root, pending); err != nil {
		return err
	}
	for _, change := range pending {
		logger.Info("Updated generated file", "file", change.Path, "action", change.Action)
	}
	return genErr
}

// Returns the directories, relative to the module root, of packages whose generated file is stale. Only packages
// that no longer contain directives can have a stale file. A package whose directives all failed to analyse keeps
// its file until they are fixed.
func staleDirs(result *analyser.Result) ([]string, error) {
	var dirs []string
	for _, pkg := range result.Packages {
		if len(pkg.Files) > 0 || pkg.Failed {
			continue
		}
		rel, err := filepath.Rel(result.Root, pkg.Dir)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		dirs = append(dirs, filepath.ToSlash(rel))
	}
	return dirs, nil
}

func list(w io.Writer, result *analyser.Result) {
	for _, typ := range result.Registry.All() {
		fmt.Fprintf(w, "%s.%s: %s\n", typ.Ref.Path, typ, typ.Strategy)
	}
	for _, pkg := range result.Packages {
		for _, file := range pkg.Files {
			for _, container := range file.Containers {
				fmt.Fprintf(w, "%s.%s:\n", pkg.Path, container)
				for _, field := range container.Fields {
					if field.Inject != nil {
						fmt.Fprintf(w, "  %s %s <- %s\n", field.Name, field.Type, field.Inject.Concrete)
					} else {
						fmt.Fprintf(w, "  %s %s\n", field.Name, field.Type)
					}
				}
			}
		}
	}
}

// Concurrent runs in the same module share a lock.
func lockPath(root string) string {
	h := fnv.New64a()
	h.Write([]byte(root)) //nolint:errcheck
	return filepath.Join(os.TempDir(), fmt.Sprintf("digen-%x.lock", h.Sum64()))
}

// Combine explicit tags and tags from GOFLAGS, without modifying explicit.
func analysisTags(explicit []string, goFlags string) []string {
	return slices.Concat(explicit, parseGoTags(goFlags))
}

func parseGoTags(goFlags string) []string {
	words, err := shellquote.Split(goFlags)
	if err != nil {
		return nil
	}
	tags := []string{}
	for _, word := range words {
		if strings.HasPrefix(word, "-tags=") {
			tags = append(tags, strings.Split(word[6:], ",")...)
		} else if strings.HasPrefix(word, "--tags=") {
			tags = append(tags, strings.Split(word[7:], ",")...)
		}
	}
	return tags
}
