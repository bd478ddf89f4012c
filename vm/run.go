package vm

import (
	"bufio"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"
)

// RunOptions configures a call to Run.
type RunOptions struct {
	TickRate time.Duration // per-cycle wall delay; zero runs at full speed
	Debug    bool          // enable the sysctrl breakpoint stall + REPL
}

// Run drives the fetch/decode/execute loop to completion. Cooperative
// scheduling points are the inter-tick sleep and, in debug mode, the
// sysctrl device's blocking read from standard input — both mirror the
// teacher's RunProgram/RunProgramDebugMode split, collapsed into one
// entry point gated on opts.Debug.
func Run(c *CPU, opts RunOptions) error {
	// The hot fetch/decode/execute loop allocates nothing per step, so
	// disable the GC for its duration and restore whatever GOGC was
	// previously configured once the program halts.
	prevPercent := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(prevPercent)
	defer c.Flush()

	if opts.Debug {
		return runDebug(c, opts)
	}

	for {
		err := c.Step()
		if err == errHalted {
			return nil
		}
		if err != nil {
			c.errcode = err
			return err
		}
		if opts.TickRate > 0 {
			time.Sleep(opts.TickRate)
		}
	}
}

// runDebug wraps the same loop with a breakpoint REPL: "n"/"next"
// single-steps, "r"/"run" resumes free-running execution, and
// "b <addr>" sets a breakpoint address at which the loop drops back
// into the REPL.
func runDebug(c *CPU, opts RunOptions) error {
	stdin := bufio.NewReader(os.Stdin)
	breakpoints := make(map[uint16]bool)
	stepping := true

	for {
		if breakpoints[c.PC()] {
			stepping = true
		}

		if stepping {
			fmt.Println(c.String())
			fmt.Print("(dbg) ")
			line, _ := stdin.ReadString('\n')
			line = strings.TrimSpace(line)
			fields := strings.Fields(line)
			if len(fields) == 0 {
				fields = []string{"n"}
			}
			switch fields[0] {
			case "n", "next":
				// fall through to single Step below
			case "r", "run":
				stepping = false
			case "b", "break":
				if len(fields) >= 2 {
					if addr, err := strconv.ParseUint(fields[1], 0, 16); err == nil {
						breakpoints[uint16(addr)] = true
					}
				}
				continue
			default:
				continue
			}
		}

		err := c.Step()
		if err == errHalted {
			return nil
		}
		if err != nil {
			c.errcode = err
			return err
		}
		if opts.TickRate > 0 {
			time.Sleep(opts.TickRate)
		}
	}
}

// ParseTickRate accepts the CLI forms from spec §6.3: "<n>hz",
// "<n>khz", "<n>mhz", "<n>ghz", or a bare integer number of
// milliseconds.
func ParseTickRate(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, nil
	}

	for _, unit := range []struct {
		suffix string
		hz     float64
	}{
		{"ghz", 1e9},
		{"mhz", 1e6},
		{"khz", 1e3},
		{"hz", 1},
	} {
		if strings.HasSuffix(s, unit.suffix) {
			n, err := strconv.ParseFloat(strings.TrimSuffix(s, unit.suffix), 64)
			if err != nil {
				return 0, fmt.Errorf("vm: invalid tick rate %q: %w", s, err)
			}
			freq := n * unit.hz
			if freq <= 0 {
				return 0, nil
			}
			return time.Duration(float64(time.Second) / freq), nil
		}
	}

	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("vm: invalid tick rate %q: %w", s, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
