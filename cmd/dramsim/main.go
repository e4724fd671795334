// Command dramsim is the CLI entrypoint (§6): it loads the config file,
// builds the DRAM/cache/core stack it describes, and drives the main
// tick loop until termination per §5.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/suprax/dramsim/internal/addrmap"
	"github.com/suprax/dramsim/internal/cache"
	"github.com/suprax/dramsim/internal/config"
	"github.com/suprax/dramsim/internal/core"
	"github.com/suprax/dramsim/internal/dram"
	"github.com/suprax/dramsim/internal/dram/ddr3"
	"github.com/suprax/dramsim/internal/dram/ddr4"
	"github.com/suprax/dramsim/internal/memory"
	"github.com/suprax/dramsim/internal/reorder"
	"github.com/suprax/dramsim/internal/stats"
	"github.com/suprax/dramsim/internal/telemetry"
)

func main() {
	app := &cli.App{
		Name:  "dramsim",
		Usage: "cycle-accurate DRAM timing and command-scheduling simulator",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Required: true, Usage: "path to the INI-style config file"},
			&cli.StringFlag{Name: "mode", Required: true, Usage: "cpu|dram"},
			&cli.StringSliceFlag{Name: "trace", Required: true, Usage: "one or more trace files"},
			&cli.StringFlag{Name: "stats", Usage: "output statistics file path"},
			&cli.IntFlag{Name: "channel", Usage: "channel count override"},
			&cli.IntFlag{Name: "rank", Usage: "rank count override"},
			&cli.StringFlag{Name: "cache", Usage: "all|L3|L1L2|none"},
			&cli.IntFlag{Name: "inflight-limit", Usage: "max in-flight DRAM-mode requests"},
			&cli.Float64Flag{Name: "cpu-frequency", Usage: "CPU frequency in MHz"},
			&cli.StringFlag{Name: "translation", Usage: "None|Random|Swizzle"},
			&cli.StringFlag{Name: "org", Usage: "organization entry name"},
			&cli.StringFlag{Name: "print-cmd-trace", Usage: "on|off"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cctx *cli.Context) error {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return cli.Exit(err, 1)
	}
	applyOverrides(cfg, cctx)

	mode := cctx.String("mode")
	traces := cctx.StringSlice("trace")
	statsPath := cctx.String("stats")
	if statsPath == "" {
		statsPath = strings.ToLower(cfg.Standard) + ".stats"
	}

	cpuFreq := int(cctx.Float64("cpu-frequency"))
	if cpuFreq <= 0 {
		cpuFreq = 4000
	}

	switch mode {
	case "cpu":
		return runCPU(cfg, traces, statsPath, cpuFreq)
	case "dram":
		return runDRAM(cfg, traces, statsPath)
	default:
		return cli.Exit(fmt.Errorf("unknown --mode %q, want cpu or dram", mode), 1)
	}
}

// memFrequencyMHz reports the DRAM clock the given standard runs at,
// used to derive the CPU/memory tick ratio (§2, "Control clocks").
func memFrequencyMHz(standard string) int {
	switch strings.ToUpper(standard) {
	case "DDR4":
		return 1200
	default:
		return 800
	}
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func applyOverrides(cfg *config.Config, cctx *cli.Context) {
	if cctx.IsSet("channel") {
		cfg.Channel = cctx.Int("channel")
	}
	if cctx.IsSet("rank") {
		cfg.Rank = cctx.Int("rank")
	}
	if cctx.IsSet("cache") {
		cfg.Cache = cctx.String("cache")
	}
	if cctx.IsSet("inflight-limit") {
		cfg.InflightLimit = cctx.Int("inflight-limit")
	}
	if cctx.IsSet("translation") {
		cfg.Translation = cctx.String("translation")
	}
	if cctx.IsSet("print-cmd-trace") {
		cfg.PrintCmdTrace = cctx.String("print-cmd-trace") == "on"
	}
	if cfg.PrintCmdTrace {
		telemetry.SetLevel(zerolog.DebugLevel)
	}
}

func buildSpec(cfg *config.Config) (func() dram.Spec, addrmap.Org, error) {
	org := addrmap.Org{Channels: cfg.Channel, Ranks: cfg.Rank, Banks: 8, Rows: 65536, Cols: 1024}
	switch strings.ToUpper(cfg.Standard) {
	case "DDR3":
		speed := ddr3.DDR3_1600K
		if cfg.Speed == "DDR3_2133K" {
			speed = ddr3.DDR3_2133K
		}
		ddrOrg := ddr3.Org{Channels: org.Channels, Ranks: org.Ranks, Banks: org.Banks, Rows: org.Rows, Cols: org.Cols}
		return func() dram.Spec { return ddr3.New(ddrOrg, speed) }, org, nil
	case "DDR4":
		speed := ddr4.DDR4_2400R
		ddrOrg := ddr4.Org{Channels: org.Channels, Ranks: org.Ranks, Banks: org.Banks, Rows: org.Rows, Cols: org.Cols}
		return func() dram.Spec { return ddr4.New(ddrOrg, speed) }, org, nil
	default:
		return nil, org, fmt.Errorf("unsupported standard %q", cfg.Standard)
	}
}

func buildMemory(cfg *config.Config) (*memory.Memory, *stats.Registry, error) {
	newSpec, org, err := buildSpec(cfg)
	if err != nil {
		return nil, nil, cli.Exit(err, 1)
	}
	numCores := 1
	st := stats.New(ramulatorPrefix(), org.Channels, numCores)
	mem := memory.New(memory.Config{
		Org:         org,
		Mode:        addrmap.ParseMode(cfg.Translation),
		NewSpec:     newSpec,
		SchedName:   cfg.Scheduler,
		RowPolName:  cfg.RowPolicy,
		TimeoutN:    200,
		ReadLatency: cfg.ReadLatency,
		QueueCap:    cfg.QueueCap,
	}, st)
	for _, c := range mem.Controllers {
		c.RecordCmdTrace = cfg.RecordCmdTrace
		c.PrintCmdTrace = cfg.PrintCmdTrace
	}
	return mem, st, nil
}

func ramulatorPrefix() string { return "" }

const blockSize = 64

func runCPU(cfg *config.Config, traces []string, statsPath string, cpuFreq int) error {
	mem, st, err := buildMemory(cfg)
	if err != nil {
		return err
	}
	st.Cores = nil
	// hasL3/hasCoreCaches follow the original's independent has_l3_cache()/
	// has_core_caches() predicates: "all" builds both, "L3" builds only a
	// shared L3, "L1L2" builds only private per-core L1/L2, and any other
	// value (including "none") builds neither.
	hasL3 := cfg.Cache == "all" || cfg.Cache == "L3"
	hasCoreCaches := cfg.Cache == "all" || cfg.Cache == "L1L2"
	// filtered (§6 trace format note) tracks whether a core's own writes
	// surface as explicit synthesized requests rather than as L1/L2
	// eviction writebacks — that's a property of per-core L1/L2 being
	// present, not of the cache hierarchy as a whole (an L3-only channel
	// still needs synthesized writes; it has no per-core cache to evict).
	filtered := !hasCoreCaches

	var sys *cache.CacheSystem
	var l3 *cache.Cache
	if hasL3 || hasCoreCaches {
		sys = cache.NewSystem(mem)
		if hasL3 {
			l3 = cache.New(cache.Config{Level: cache.L3, BlockSize: blockSize, Sets: 2048, Assoc: 16, Latency: 32, MSHRSize: 64}, sys, "l3")
			sys.Register(l3)
		}
	}

	var cores []*core.Core
	for i, tracePath := range traces {
		trace, err := core.LoadCPUTrace(tracePath)
		if err != nil {
			return cli.Exit(err, 1)
		}
		trace.Loop = filtered
		cst := &stats.Core{ID: i}
		st.Cores = append(st.Cores, cst)

		var sender core.Sender = mem
		switch {
		case hasCoreCaches:
			l1 := cache.New(cache.Config{Level: cache.L1, BlockSize: blockSize, Sets: 64, Assoc: 8, Latency: 1, MSHRSize: 16}, sys, fmt.Sprintf("l1.%d", i))
			l2 := cache.New(cache.Config{Level: cache.L2, BlockSize: blockSize, Sets: 512, Assoc: 8, Latency: 8, MSHRSize: 32}, sys, fmt.Sprintf("l2.%d", i))
			l1.Lower = l2
			l2.Highers = append(l2.Highers, l1)
			sys.Register(l1)
			sys.Register(l2)
			if l3 != nil {
				l2.Lower = l3
				l3.Highers = append(l3.Highers, l2)
			}
			sender = l1
		case l3 != nil:
			sender = l3
		}

		win := &reorder.Window{}
		cores = append(cores, core.NewCore(i, trace, sender, win, ^uint64(blockSize-1), filtered, cst))
	}

	proc := &core.Processor{Cores: cores, Stats: st, EarlyExit: cfg.EarlyExit}

	memFreq := memFrequencyMHz(cfg.Standard)
	g := gcd(cpuFreq, memFreq)
	cpuTick, memTick := memFreq/g, cpuFreq/g

	for clk := 0; !proc.Finished(); clk++ {
		if clk%cpuTick == 0 {
			proc.Tick()
			if sys != nil {
				sys.Tick()
			}
		}
		if clk%memTick == 0 {
			mem.Tick()
			if mem.PendingRequests() > 0 {
				st.MemoryAccessCycles++
			}
		}
	}

	return exitFromStats(st.Finish(statsPath))
}

func exitFromStats(err error) error {
	if err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}

func runDRAM(cfg *config.Config, traces []string, statsPath string) error {
	mem, st, err := buildMemory(cfg)
	if err != nil {
		return err
	}
	if len(traces) != 1 {
		return cli.Exit(fmt.Errorf("--mode dram takes exactly one --trace"), 1)
	}
	trace, err := core.LoadDRAMTrace(traces[0])
	if err != nil {
		return cli.Exit(err, 1)
	}
	driver := &core.DRAMTraceDriver{Sender: mem, Trace: trace, InflightLimit: cfg.InflightLimit}

	for !driver.Finished() || mem.PendingRequests() > 0 {
		driver.Tick()
		mem.Tick()
		st.CPUCycles++
		if mem.PendingRequests() > 0 {
			st.MemoryAccessCycles++
		}
	}

	return exitFromStats(st.Finish(statsPath))
}
