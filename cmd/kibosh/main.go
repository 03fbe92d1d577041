// Command kibosh mounts a fault-injecting mirror of a target directory
// tree, controllable at runtime through /kibosh_control.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/moby/sys/mountinfo"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/kibosh/kibosh/internal/control"
	"github.com/kibosh/kibosh/internal/dropcache"
	"github.com/kibosh/kibosh/internal/fault"
	"github.com/kibosh/kibosh/internal/kbfs"
	"github.com/kibosh/kibosh/internal/klog"
	"github.com/kibosh/kibosh/internal/pidfile"
)

type config struct {
	mountPoint      string
	target          string
	controlMode     uint32
	logPath         string
	pidfilePath     string
	randomSeed      *int64
	verbose         bool
	dropCachePath   string
	dropCachePeriod time.Duration
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := parseFlags(args)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, "kibosh:", err)
		return 2
	}

	logOut, closeLog, err := openLog(cfg.logPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kibosh:", err)
		return 1
	}
	defer closeLog()
	log := klog.New(logOut, cfg.verbose)

	if err := validateTarget(cfg.target, cfg.mountPoint); err != nil {
		log.Infof("startup validation failed: %v", err)
		return 1
	}

	if cfg.pidfilePath != "" {
		if err := pidfile.Write(cfg.pidfilePath); err != nil {
			log.Infof("%v", err)
			return 1
		}
		defer pidfile.Remove(cfg.pidfilePath)
	}

	rng := fault.NewRNG(cfg.randomSeed)
	ctrl := control.New(cfg.controlMode, control.DefaultCapacity, log)
	fsys := kbfs.NewFs(cfg.target, ctrl, rng, log)
	root := kbfs.NewRoot(fsys)

	server, err := fs.Mount(cfg.mountPoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			Debug: cfg.verbose,
		},
		Logger: log.StdLogger(),
	})
	if err != nil {
		log.Infof("mount failed: %v", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("received shutdown signal, unmounting %s", cfg.mountPoint)
		server.Unmount()
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		server.Wait()
		return nil
	})
	if cfg.dropCachePath != "" {
		ticker := dropcache.New(cfg.dropCachePath, cfg.dropCachePeriod)
		g.Go(func() error {
			return ticker.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Infof("shutting down: %v", err)
		return 1
	}
	return 0
}

func parseFlags(args []string) (*config, error) {
	fs := flag.NewFlagSet("kibosh", flag.ContinueOnError)

	target := fs.String("target", "", "target directory to mirror (required)")
	controlMode := fs.Uint32("control-mode", control.DefaultMode, "octal permission bits reported for /kibosh_control")
	logPath := fs.String("log-file", "", "path to write logs to (default stderr)")
	pidfilePath := fs.String("pidfile", "", "path to write the process pid to")
	seed := fs.Int64("random-seed", 0, "deterministic RNG seed (0 = time-seeded)")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	dropCachePath := fs.String("drop-cache-path", "", "path to periodically write '1' to (empty disables the ticker)")
	dropCachePeriod := fs.Duration("drop-cache-period", dropcache.DefaultPeriod, "interval between cache-drop writes")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("usage: kibosh [flags] <mountpoint>")
	}
	if *target == "" {
		return nil, fmt.Errorf("--target is required")
	}

	absTarget, err := filepath.Abs(*target)
	if err != nil {
		return nil, fmt.Errorf("resolving --target: %w", err)
	}

	cfg := &config{
		mountPoint:      fs.Arg(0),
		target:          absTarget,
		controlMode:     *controlMode,
		logPath:         *logPath,
		pidfilePath:     *pidfilePath,
		verbose:         *verbose,
		// Unset --drop-cache-path disables the ticker entirely: writing to
		// the real /proc/sys/vm/drop_caches unconditionally on every
		// machine this runs on would be unwelcome, so the operator must
		// opt in explicitly.
		dropCachePath:   *dropCachePath,
		dropCachePeriod: *dropCachePeriod,
	}
	if *seed != 0 {
		cfg.randomSeed = seed
	}
	return cfg, nil
}

func openLog(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stderr, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening --log-file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func validateTarget(target, mountPoint string) error {
	st, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("--target: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("--target %s is not a directory", target)
	}

	mounted, err := mountinfo.Mounted(mountPoint)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checking mount point: %w", err)
	}
	if mounted {
		return fmt.Errorf("%s is already a mount point", mountPoint)
	}
	return nil
}
