package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Myriad-Dreamin/tinymist-core/internal/config"
	"github.com/Myriad-Dreamin/tinymist-core/internal/debug"
	"github.com/Myriad-Dreamin/tinymist-core/internal/project"
	"github.com/Myriad-Dreamin/tinymist-core/internal/version"
)

func main() {
	app := &cli.App{
		Name:                   "tmls",
		Usage:                  "Typst language-intelligence core: analysis compiles and live watching",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   ".tinymist.kdl",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Write debug logging to stderr",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				debug.Enable(debug.CatAll)
				debug.SetOutput(os.Stderr)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "compile",
				Usage:  "Run one analysis compile of the configured entry",
				Action: runCompile,
			},
			{
				Name:   "watch",
				Usage:  "Watch the workspace and recompile on changes",
				Action: runWatch,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")
	if rootFlag := c.String("root"); rootFlag != "" && configPath == ".tinymist.kdl" {
		configPath = filepath.Join(rootFlag, ".tinymist.kdl")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	if rootFlag := c.String("root"); rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}
	return cfg, nil
}

// printHandler prints artifact outcomes and suspension reports; it does not
// schedule compiles itself.
type printHandler struct {
	project.NoopHandler
}

func (printHandler) NotifyCompile(a *project.CompiledArtifact) {
	entry := a.Snapshot.Entry.Entry
	switch {
	case !a.Success():
		fmt.Printf("error: %s (%d errors, %d warnings) in %s\n",
			entry, len(a.Errors), len(a.Warnings), a.Duration.Round(time.Millisecond))
		if s := formatDiags(a.Errors); s != "" {
			fmt.Println(s)
		}
	default:
		fmt.Printf("compiled: %s (%d warnings) in %s\n",
			entry, len(a.Warnings), a.Duration.Round(time.Millisecond))
	}
	if s := formatDiags(a.Warnings); s != "" {
		fmt.Println(s)
	}
}

func (printHandler) Status(rev uint64, id project.ProjectInsId, r project.CompileReport) {
	if r.Kind == project.ReportSuspend {
		fmt.Printf("suspended: %s\n", id)
	}
}

// watchHandler additionally schedules a compile whenever any project has an
// accumulated reason.
type watchHandler struct {
	printHandler
}

func (watchHandler) OnAnyCompileReason(c *project.ProjectCompiler) {
	c.CompileAll()
}

func runCompile(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	h := printHandler{}
	pc := project.New(project.Options{
		Handler: h,
		Compile: newAnalysisCompile(),
		Primary: newUniverse(cfg),
	})
	defer pc.Close()

	pc.Process(project.InterruptCompile{Id: project.PrimaryId})

	run := pc.Primary().MayCompile(h, newAnalysisCompile())
	if run == nil {
		return fmt.Errorf("entry %s is not compilable", cfg.EntryPath())
	}
	artifact := run()
	pc.Process(project.InterruptCompiled{Artifact: artifact})

	if !artifact.Success() {
		return cli.Exit("", 1)
	}
	return nil
}

func runWatch(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	var fw *project.FsWatcher
	pc := project.New(project.Options{
		Handler: watchHandler{},
		Compile: newAnalysisCompile(),
		Primary: newUniverse(cfg),
		Upstream: func(ev project.UpstreamUpdateEvent) {
			if fw != nil {
				fw.UpstreamUpdate(ev)
			}
		},
	})

	fw, err = project.NewFsWatcher(project.WatcherOptions{
		Include:          cfg.Watch.Include,
		Exclude:          cfg.Watch.Exclude,
		DebounceInterval: time.Duration(cfg.Watch.DebounceMs) * time.Millisecond,
	}, func(ev project.FilesystemEvent) {
		pc.Send(project.InterruptFs{Event: ev})
	})
	if err != nil {
		return err
	}
	if err := fw.Start(cfg.Project.Root); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go pc.Run(ctx)

	pc.Send(project.InterruptCompile{Id: project.PrimaryId})
	fmt.Printf("watching %s (entry %s)\n", cfg.Project.Root, cfg.EntryPath())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	if err := fw.Stop(); err != nil {
		debug.LogProject("watcher stop: %v", err)
	}
	pc.Close()
	return nil
}
