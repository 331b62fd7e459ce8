package eir

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
)

// printHelp prints the commands table
func printHelp() {
	colSuccess.Println("Usage: eir <command> [arguments]")
	fmt.Println()
	color.Info.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"version, --version", "", "Version information"},
		{"download, d", "<pkg>|all", "Fetch a package's source archive"},
		{"extract, x", "<pkg>|all", "Verify and extract a package's source"},
		{"patch", "<phase> <pkg>", "Apply a package's patches for a phase"},
		{"build, b", "<phase> <pkg>", "Run a package's build command for a phase"},
		{"prepare", "", "Fetch, verify and extract every manifest"},
		{"toolchain, t", "[-jobs N]", "Build the full cross toolchain"},
		{"graph", "", "Print the dependency graph without executing it"},
		{"status, s", "[-tui]", "Show stamp completion per package and phase"},
		{"clean", "<pkg> [phase]", "Clear stamps so a unit rebuilds"},
		{"mirror", "push", "Upload the source cache to the configured mirror"},
	}

	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		var usageString string
		if c.Args != "" {
			usageString = fmt.Sprintf("  %s %s", c.Cmd, c.Args)
		} else {
			usageString = fmt.Sprintf("  %s", c.Cmd)
		}

		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		if c.Args != "" {
			fmt.Print(" ")
			color.Cyan.Print(c.Args)
		}

		pad := columnWidth - len(usageString)
		if pad < 1 {
			pad = 1
		}
		fmt.Print(strings.Repeat(" ", pad))
		color.Info.Println(c.Desc)
	}
	fmt.Println()
}

func fatal(err error) {
	colArrow.Print("-> ")
	colError.Printf("%v\n", err)
	os.Exit(1)
}

// Main is the CLI entrypoint for the eir binary.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigs:
			colArrow.Print("\n-> ")
			color.Danger.Printf("Received %v. Cancelling process gracefully\n", sig)
			cancel()
			select {
			case <-sigs:
				os.Exit(130)
			case <-time.After(2 * time.Second):
				os.Exit(130)
			}
		case <-ctx.Done():
		}
	}()

	if len(os.Args) < 2 {
		printHelp()
		return
	}

	configPath := ConfigFile
	if p := os.Getenv("EIR_CONF"); p != "" {
		configPath = p
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		fatal(err)
	}
	bc, err := newBuildContext(cfg)
	if err != nil {
		fatal(err)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "version", "--version", "-v":
		fmt.Printf("eir %s (%s, built %s)\n", version, arch, buildDate)
		return
	case "help", "--help", "-h":
		printHelp()
		return
	}

	manifests, err := LoadManifests(bc.ManifestDir)
	if err != nil {
		fatal(err)
	}
	graph, err := NewGraph(manifests, ToolchainOrder)
	if err != nil {
		fatal(err)
	}

	switch cmd {
	case "download", "d":
		if len(args) < 1 {
			fatal(fmt.Errorf("usage: eir download <pkg>|all"))
		}
		for _, target := range expandPackages(manifests, args[0]) {
			if err := graph.RunTarget(ctx, bc, unitID(UnitDownload, target, "")); err != nil {
				fatal(err)
			}
		}

	case "extract", "x":
		if len(args) < 1 {
			fatal(fmt.Errorf("usage: eir extract <pkg>|all"))
		}
		for _, target := range expandPackages(manifests, args[0]) {
			if err := graph.RunTarget(ctx, bc, GoalPackage(target)); err != nil {
				fatal(err)
			}
		}

	case "patch":
		if len(args) < 2 {
			fatal(fmt.Errorf("usage: eir patch <phase> <pkg>"))
		}
		if err := runPatchCommand(ctx, bc, graph, args[0], args[1]); err != nil {
			fatal(err)
		}

	case "build", "b":
		if len(args) < 2 {
			fatal(fmt.Errorf("usage: eir build <phase> <pkg>"))
		}
		if err := runBuildCommand(ctx, bc, graph, args[0], args[1]); err != nil {
			fatal(err)
		}

	case "prepare":
		if err := graph.RunTarget(ctx, bc, GoalPrepare); err != nil {
			fatal(err)
		}

	case "toolchain", "t":
		jobs := 1
		for i := 0; i < len(args); i++ {
			if args[i] == "-jobs" && i+1 < len(args) {
				if n, err := strconv.Atoi(args[i+1]); err == nil && n > 0 {
					jobs = n
				}
				i++
			}
		}
		if err := graph.RunTargetParallel(ctx, bc, GoalToolchain, jobs); err != nil {
			fatal(err)
		}
		colArrow.Print("-> ")
		colSuccess.Println("Toolchain complete")

	case "graph":
		fmt.Print(graph.Describe())

	case "status", "s":
		if len(args) > 0 && args[0] == "-tui" {
			if err := runStatusTUI(bc, manifests); err != nil {
				fatal(err)
			}
			return
		}
		printStatus(bc, manifests)

	case "clean":
		if len(args) < 1 {
			fatal(fmt.Errorf("usage: eir clean <pkg> [phase]"))
		}
		phases := []string{PhaseBootstrap, PhaseToolchain}
		if len(args) > 1 {
			phases = args[1:]
		}
		for _, phase := range phases {
			if err := bc.Stamps.Clear(args[0], phase); err != nil {
				fatal(err)
			}
		}

	case "mirror":
		if len(args) < 1 || args[0] != "push" {
			fatal(fmt.Errorf("usage: eir mirror push"))
		}
		if err := mirrorPush(ctx, bc); err != nil {
			fatal(err)
		}

	default:
		fmt.Println("Unknown command:", cmd)
		printHelp()
		os.Exit(1)
	}
}

// runBuildCommand executes the build unit for (phase, pkg) with its full
// predecessor chain. A known package with no build command for the phase is
// a warning skip, not an error.
func runBuildCommand(ctx context.Context, bc *BuildContext, g *Graph, phase, pkg string) error {
	if id := unitID(UnitBuild, pkg, phase); g.HasUnit(id) {
		return g.RunTarget(ctx, bc, id)
	}
	m := g.Manifest(pkg)
	if m == nil {
		return fmt.Errorf("unknown package: %s", pkg)
	}
	return buildPhase(ctx, bc, m, phase)
}

// runPatchCommand applies the patches for (phase, pkg). A package may carry
// patches for a phase it has no build command for, so a missing graph unit
// falls back to the extraction chain plus direct application.
func runPatchCommand(ctx context.Context, bc *BuildContext, g *Graph, phase, pkg string) error {
	if id := unitID(UnitPatch, pkg, phase); g.HasUnit(id) {
		return g.RunTarget(ctx, bc, id)
	}
	m := g.Manifest(pkg)
	if m == nil {
		return fmt.Errorf("unknown package: %s", pkg)
	}
	if err := g.RunTarget(ctx, bc, GoalPackage(pkg)); err != nil {
		return err
	}
	return applyPatches(ctx, bc, m, phase)
}

// expandPackages resolves the "all" pseudo-package.
func expandPackages(manifests []*Manifest, arg string) []string {
	if arg != "all" {
		return []string{arg}
	}
	names := make([]string, 0, len(manifests))
	for _, m := range manifests {
		names = append(names, m.Name)
	}
	return names
}
