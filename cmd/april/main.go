// Package main provides the april CLI.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/born-ml/april/internal/config"
	"github.com/born-ml/april/internal/device"
	"github.com/born-ml/april/internal/device/webgpu"
	"github.com/born-ml/april/internal/serialization"
)

const version = "v0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "april - dense matrices and ANN components for Go")
	fmt.Fprintf(w, "Version: %s\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version              Show version")
	fmt.Fprintln(w, "  devices              Show host features and the configured accelerator")
	fmt.Fprintln(w, "  geometry N [M]       Show launch geometry for N (or NxM) elements")
	fmt.Fprintln(w, "  inspect FILE.aprw    List the blocks of a weights file")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Flags:\n  -config PATH         YAML configuration (default $%s)\n", config.EnvVar)
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("april", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML configuration file")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	args = fs.Args()
	if len(args) == 0 {
		usage(stdout)
		return 0
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "april:", err)
		return 1
	}
	logger := cfg.Logger(stderr)

	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "april %s (weights format v%d)\n", version, serialization.FormatVersion)
	case "devices":
		err = devices(stdout, cfg)
	case "geometry":
		err = geometry(stdout, cfg, args[1:])
	case "inspect":
		err = inspect(stdout, args[1:])
	default:
		err = fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		logger.Error("command failed", "command", args[0], "error", err)
		return 1
	}
	return 0
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FromEnv()
}

func devices(w io.Writer, cfg config.Config) error {
	ctx, err := cfg.NewContext(cfg.Logger(io.Discard))
	if err != nil {
		return err
	}
	host := ctx.Host()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "host vector path:\t%s (%d lanes)\n", host.VectorPath(), host.VectorWidth())
	fmt.Fprintf(tw, "host features:\t%s\n", host)
	fmt.Fprintf(tw, "parallel:\t%v (workers %d, min chunk %d)\n",
		ctx.Parallel().Enabled, ctx.Parallel().NumWorkers, ctx.Parallel().MinChunkSize)
	fmt.Fprintf(tw, "accelerator:\t%s (default %v)\n", ctx.AcceleratorName(), ctx.DefaultUseAccelerator())
	fmt.Fprintf(tw, "webgpu available:\t%v\n", webgpu.IsAvailable())
	caps := ctx.Capabilities()
	fmt.Fprintf(tw, "capabilities:\tthreads/block %d, reduce thread size %d..%d, reduce threads %d\n",
		caps.MaxThreadsPerBlock, caps.MinReduceThreadSize, caps.MaxReduceThreadSize, caps.MaxReduceNumThreads)
	return tw.Flush()
}

func geometry(w io.Writer, cfg config.Config, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("geometry: expected N [M]")
	}
	dims := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil || v < 0 {
			return fmt.Errorf("geometry: invalid size %q", a)
		}
		dims[i] = v
	}
	caps := cfg.Device.Capabilities
	if len(dims) == 2 {
		block, grid := device.ComputeBlockAndGridSizesFor2DMatrix(dims[0], dims[1], caps)
		fmt.Fprintf(w, "block %dx%d grid %dx%d\n", block.X, block.Y, grid.X, grid.Y)
		return nil
	}
	n := dims[0]
	threads, threadSize, blocks := device.ComputeReductionSize(n, caps)
	fmt.Fprintf(w, "reduction: threads %d thread_size %d blocks %d second_pass %d\n",
		threads, threadSize, blocks, device.ComputeSecondReductionSize(blocks, caps))
	threads, blocks = device.ComputeBlockAndGridSizesForArray(n, caps)
	fmt.Fprintf(w, "array: threads %d blocks %d\n", threads, blocks)
	return nil
}

func inspect(w io.Writer, args []string) error {
	if len(args) != 1 {
		return errors.New("inspect: expected a weights file")
	}
	r, err := serialization.Open(args[0])
	if err != nil {
		return err
	}
	defer r.Close() //nolint:errcheck // read-only

	h := r.Header()
	fmt.Fprintf(w, "format v%d, written by april %s at %s\n",
		h.FormatVersion, h.AprilVersion, h.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "checksum %x\n", r.Checksum())
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tINPUT\tOUTPUT\tELEMENTS")
	for _, name := range r.BlockNames() {
		meta, err := r.BlockInfo(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", meta.Name, meta.Input, meta.Output, meta.Input*meta.Output)
	}
	for _, k := range slices.Sorted(maps.Keys(h.Metadata)) {
		fmt.Fprintf(tw, "meta %s\t%s\n", k, h.Metadata[k])
	}
	return tw.Flush()
}
