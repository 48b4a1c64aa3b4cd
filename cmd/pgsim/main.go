// Command pgsim drives a simulated boot and a concurrent alloc/free
// workload against the page allocator, using pmap/hostpmap in place of a
// real MMU. It exists to exercise the allocator the way a real kernel's
// boot path and driver workloads would, without a freestanding target.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"pgalloc/boot"
	"pgalloc/kernel/cpu"
	"pgalloc/kernel/mem/bootheap"
	"pgalloc/kernel/mem/firmware"
	"pgalloc/kernel/mem/pmm"
	"pgalloc/kernel/mem/pmm/diag"
	"pgalloc/kernel/mem/segment"
	"pgalloc/pmap/hostpmap"
)

func main() {
	var (
		memSize    = flag.Int64("mem", 64<<20, "simulated RAM size in bytes")
		numCPU     = flag.Int("cpus", 4, "number of simulated CPUs contending for the allocator")
		iterations = flag.Int("iters", 20000, "order-0 alloc/free round trips per simulated CPU")
		profileOut = flag.String("profile", "", "if set, write a pprof fragmentation profile to this path")
	)
	flag.Parse()

	if err := run(*memSize, *numCPU, *iterations, *profileOut); err != nil {
		exit(err)
	}
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[pgsim] error: %s\n", err.Error())
	os.Exit(1)
}

func run(memSize int64, numCPU, iterations int, profileOut string) error {
	cpu.Configure(numCPU)

	raw := []firmware.Entry{
		{Base: 0, Length: uint64(memSize), Type: firmware.Available},
	}
	cfg := boot.Config{
		Limits:         segment.Limits{DirectMapLimit: uintptr(memSize)},
		HeapPolicy:     bootheap.TopDown,
		HeapLowerBound: 0,
		HeapUpperBound: uintptr(memSize),
		NumCPU:         numCPU,
	}

	b := boot.New(cfg)
	if err := b.Bootstrap(raw, nil); err != nil {
		return err
	}

	pm := hostpmap.New(uintptr(memSize))
	if err := b.Setup(pm); err != nil {
		return err
	}
	b.FreeUsable()

	a := b.Allocator()
	fmt.Printf("loaded %d bytes of simulated RAM across %d segment(s)\n", memSize, len(a.Segments()))

	before := diag.TakeSnapshot(a)
	fmt.Print(diag.RenderTable(before))

	if err := stress(a, numCPU, iterations); err != nil {
		return err
	}

	after := diag.TakeSnapshot(a)
	fmt.Print(diag.RenderTable(after))

	if after.MemFree != before.MemFree {
		return fmt.Errorf("leaked %d bytes across the stress run", before.MemFree-after.MemFree)
	}

	if profileOut != "" {
		return writeProfile(a, after, profileOut)
	}
	return nil
}

// stress fans out one goroutine per simulated CPU, each performing
// iterations order-0 alloc/free round trips. It uses errgroup rather than a
// plain sync.WaitGroup so that the first worker's failure cancels the
// group's context and is propagated to the caller, instead of silently
// finishing a run that already lost a page.
func stress(a *pmm.Allocator, numCPU, iterations int) error {
	g, ctx := errgroup.WithContext(context.Background())

	for w := 0; w < numCPU; w++ {
		g.Go(func() error {
			for i := 0; i < iterations; i++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				d, ok := a.Alloc(0, segment.DIRECTMAP, pmm.Kernel)
				if !ok {
					return fmt.Errorf("order-0 allocation failed after %d iterations", i)
				}
				a.Free(d, 0)
			}
			return nil
		})
	}

	return g.Wait()
}

func writeProfile(a *pmm.Allocator, snap diag.Snapshot, path string) error {
	prof := diag.BuildProfile(a, snap, time.Now())
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := prof.Write(f); err != nil {
		return err
	}
	fmt.Printf("wrote fragmentation profile to %s (inspect with %q)\n", path, profileHint(path))
	return nil
}

func profileHint(path string) string {
	return exec.Command("go", "tool", "pprof", path).String()
}
