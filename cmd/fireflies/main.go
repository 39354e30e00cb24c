package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/width"

	"github.com/megameal/fireflies/internal/config"
	"github.com/megameal/fireflies/internal/core/event"
	coresys "github.com/megameal/fireflies/internal/core/system"
	"github.com/megameal/fireflies/internal/data"
	"github.com/megameal/fireflies/internal/geom"
	"github.com/megameal/fireflies/internal/lighting"
	"github.com/megameal/fireflies/internal/lightpool"
	"github.com/megameal/fireflies/internal/overlay"
	"github.com/megameal/fireflies/internal/persist"
	"github.com/megameal/fireflies/internal/scripting"
	"github.com/megameal/fireflies/internal/spatial"
	"github.com/megameal/fireflies/internal/system"
	"github.com/megameal/fireflies/internal/world"
)

// overlayLogFile receives log output while the overlay owns the terminal.
const overlayLogFile = "fireflies.log"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

var numbers = message.NewPrinter(language.English)

func printBanner(runID string) {
	fmt.Println()
	fmt.Println("\033[33;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[33;1m  │\033[0m           Fireflies  v0.1.0               \033[33;1m│\033[0m")
	fmt.Println("\033[33;1m  │\033[0m      pooled light allocation demo         \033[33;1m│\033[0m")
	fmt.Println("\033[33;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mrun:\033[0m %s\n\n", runID)
}

// displayWidth counts terminal columns, two for wide East Asian runes.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func printSection(title string) {
	lineLen := max(46-displayWidth(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := numbers.Sprintf("%d", count)
	dotsLen := max(42-displayWidth(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfg, err := config.Load(config.Path("config/fireflies.toml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging, cfg.Overlay.Enabled)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	runID := time.Now().UTC().Format("20060102T150405Z")
	printBanner(runID)

	// 3. Telemetry database (optional)
	var sink system.TelemetrySink
	if cfg.Database.Enabled {
		printSection("Database")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		version, err := persist.RunMigrations(ctx, db.Pool, log)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("migrations at version %d", version))
		sink = persist.NewTelemetryRepo(db, runID)
		fmt.Println()
	}

	// 4. Load swarm data and scripts
	printSection("Data")

	swarms, err := data.LoadSwarmTable(cfg.Data.SwarmList)
	if err != nil {
		return fmt.Errorf("load swarms: %w", err)
	}
	printStat("swarm definitions", swarms.Count())

	engine, err := scripting.NewEngine(cfg.Data.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	var twinkler lighting.Twinkler = lighting.SineTwinkle{}
	if engine.HasTwinkle() {
		twinkler = engine
		printOK("Lua twinkle curve loaded")
	} else {
		printOK("built-in sine twinkle")
	}
	fmt.Println()

	// 5. World
	printSection("World")

	bounds := cfg.Grid.Bounds()
	bus := event.NewBus()
	swarm := world.NewSwarm(bounds, cfg.Sim.Seed, bus, log)
	printStat("fireflies spawned", swarm.SpawnTable(swarms))

	grid, err := spatial.NewGrid[lighting.Firefly](cfg.Grid.CellSize, bounds, log)
	if err != nil {
		return fmt.Errorf("spatial grid: %w", err)
	}
	pool, err := lightpool.New(cfg.Pool.Capacity, log)
	if err != nil {
		return fmt.Errorf("light pool: %w", err)
	}
	defer pool.Dispose()
	printStat("pooled lights", pool.Capacity())

	sched, err := lighting.New(cfg.Lighting, lighting.Deps{
		Grid:     grid,
		Pool:     pool,
		Source:   swarm,
		Twinkler: twinkler,
		Bus:      bus,
		Log:      log,
	})
	if err != nil {
		return fmt.Errorf("light scheduler: %w", err)
	}
	printStat("light budget", cfg.Lighting.MaxLights)

	center := bounds.Center()
	rig := &geom.CameraRig{
		Center: geom.V(center.X, 0, center.Z),
		Radius: cfg.Camera.OrbitRadius,
		Height: cfg.Camera.OrbitHeight,
		Speed:  cfg.Camera.OrbitSpeed,
		Template: geom.Camera{
			FOV:    cfg.Camera.FOV,
			Aspect: cfg.Camera.Aspect,
			Near:   cfg.Camera.Near,
			Far:    cfg.Camera.Far,
		},
	}
	views, err := system.NewCameraViews(cfg.Camera.Mode, rig, cfg.Camera.OrthoHalfExtent)
	if err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	fmt.Println()

	// 6. Register systems
	telemetry := system.NewTelemetrySystem(sched, bus, sink, cfg.Database.FlushInterval, log)
	lights := system.NewLightingSystem(sched, views)
	lifetime := system.NewLifetimeSystem(swarm, log)

	runner := coresys.NewRunner()
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewDriftSystem(swarm))
	runner.Register(system.NewCyclingSystem(swarm))
	runner.Register(lifetime)
	runner.Register(lights)
	runner.Register(telemetry)
	runner.Register(system.NewCleanupSystem(swarm, sched, log))

	// 7. Overlay (optional)
	var ov *overlay.Overlay
	var screenEvents chan tcell.Event
	if cfg.Overlay.Enabled {
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("overlay screen: %w", err)
		}
		if err := screen.Init(); err != nil {
			return fmt.Errorf("overlay init: %w", err)
		}
		defer screen.Fini()

		ov = overlay.New(screen, sched, views.Camera, cfg.Overlay.RefreshTicks)
		screenEvents = make(chan tcell.Event, 16)
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			for {
				ev := screen.PollEvent()
				if ev == nil {
					return
				}
				select {
				case screenEvents <- ev:
				case <-stop:
					return
				}
			}
		}()
	}

	// 8. Frame loop
	frame := time.Duration(float64(time.Second) / cfg.Sim.FrameRate)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	var deadline <-chan time.Time
	if cfg.Sim.Duration > 0 {
		t := time.NewTimer(cfg.Sim.Duration)
		defer t.Stop()
		deadline = t.C
	}

	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	printReady(fmt.Sprintf("simulating at %.0f fps (%s view)", cfg.Sim.FrameRate, cfg.Camera.Mode))
	log.Info("simulation started",
		zap.String("run", runID),
		zap.Int("fireflies", swarm.Len()),
		zap.Int("max_lights", cfg.Lighting.MaxLights),
		zap.Int("pool", pool.Capacity()))

	start := time.Now()
	frames := 0
loop:
	for {
		select {
		case <-ticker.C:
			runner.Tick(frame)
			frames++
			if ov != nil {
				ov.Frame()
			}

		case ev := <-screenEvents:
			if !ov.HandleEvent(ev) {
				log.Info("overlay closed")
				break loop
			}

		case <-deadline:
			log.Info("run duration reached", zap.Duration("duration", cfg.Sim.Duration))
			break loop

		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			break loop
		}
	}

	// 9. Shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := telemetry.Flush(ctx); err != nil {
		log.Error("final telemetry flush failed", zap.Error(err), zap.Int("buffered", telemetry.Buffered()))
	}

	st := sched.Stats()
	sched.Dispose()
	tot := telemetry.Totals()
	log.Info("simulation stopped",
		zap.Int("frames", frames),
		zap.Duration("wall", time.Since(start).Round(time.Millisecond)),
		zap.Uint64("ticks", st.Ticks),
		zap.Int("acquired", tot.Acquired),
		zap.Int("released", tot.Released),
		zap.Int("exhausted", tot.Exhausted),
		zap.Int("expired", lifetime.Expired()),
		zap.Int("despawned", tot.Despawned),
		zap.Uint64("capacity_skips", st.CapacitySkips),
		zap.Uint64("invalid", st.InvalidTotal),
		zap.Int("samples_flushed", telemetry.Flushed()),
		zap.Int("samples_dropped", telemetry.Dropped()),
		zap.Uint64("lua_calls", engine.Calls()),
		zap.Uint64("lua_failures", engine.Failures()))
	return nil
}

// newLogger builds the process logger. With quiet set, output goes to
// overlayLogFile so the terminal stays clear for the overlay.
func newLogger(cfg config.LoggingConfig, quiet bool) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if quiet {
		zapCfg.OutputPaths = []string{overlayLogFile}
		if cfg.Format != "json" {
			zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder // no ANSI in the file
		}
	}

	return zapCfg.Build()
}
