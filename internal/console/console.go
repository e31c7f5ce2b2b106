// Package console implements the interactive control surface. Every
// command maps 1:1 onto a pool manager or selector operation.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"lokipool/internal/relay"
	"lokipool/proxypool"
)

type Console struct {
	pool     *proxypool.Manager
	selector *proxypool.Selector
	relay    *relay.Server
	in       io.Reader
	out      io.Writer
}

// New creates a console bound to stdin/stdout.
func New(pool *proxypool.Manager, selector *proxypool.Selector, relaySrv *relay.Server) *Console {
	return &Console{
		pool:     pool,
		selector: selector,
		relay:    relaySrv,
		in:       os.Stdin,
		out:      os.Stdout,
	}
}

// Run reads and dispatches commands until quit or EOF.
func (c *Console) Run() {
	c.printHelp()
	fmt.Fprint(c.out, "> ")

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			fmt.Fprint(c.out, "> ")
			continue
		}

		switch fields[0] {
		case "list":
			c.PrintList()
		case "show":
			c.cmdShow()
		case "next":
			c.cmdNext()
		case "goto":
			c.cmdGoto(fields[1:])
		case "ping":
			c.cmdPing()
		case "help":
			c.printHelp()
		case "quit", "exit":
			return
		default:
			fmt.Fprintln(c.out, "Unknown command, type 'help' for usage.")
		}
		fmt.Fprint(c.out, "> ")
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, "\nAvailable commands:")
	fmt.Fprintln(c.out, "  list      - show all proxies")
	fmt.Fprintln(c.out, "  show      - show the current proxy and traffic stats")
	fmt.Fprintln(c.out, "  next      - switch to the next proxy")
	fmt.Fprintln(c.out, "  goto <n>  - switch to the proxy at position n")
	fmt.Fprintln(c.out, "  ping      - re-test all proxies now")
	fmt.Fprintln(c.out, "  quit      - exit")
	fmt.Fprintln(c.out)
}

// PrintList renders the ordered view; the active entry is marked.
func (c *Console) PrintList() {
	snapshot := c.pool.Snapshot()
	if len(snapshot) == 0 {
		fmt.Fprintln(c.out, "Proxy pool is empty.")
		return
	}

	currentAddr := ""
	if rec, ok := c.selector.Current(); ok {
		currentAddr = rec.Address
	}

	fmt.Fprintln(c.out, "\nCurrent proxy list:")
	for i, rec := range snapshot {
		marker := " "
		if rec.Address == currentAddr {
			marker = "*"
		}
		latency := "-"
		if rec.Latency > 0 {
			latency = fmt.Sprintf("%dms", rec.Latency.Milliseconds())
		}
		fmt.Fprintf(c.out, "%s %3d. %-21s %8s  %s\n", marker, i+1, rec.Address, latency, rec.Status)
	}
	fmt.Fprintln(c.out)
}

func (c *Console) cmdShow() {
	rec, ok := c.selector.Current()
	if !ok {
		fmt.Fprintln(c.out, "No proxy selected.")
	} else {
		fmt.Fprintf(c.out, "Current proxy: %s (latency: %dms, status: %s)\n",
			rec.Address, rec.Latency.Milliseconds(), rec.Status)
	}
	if c.relay != nil {
		active, uplink, downlink := c.relay.Stats()
		fmt.Fprintf(c.out, "Sessions: %d active, %d bytes up, %d bytes down\n", active, uplink, downlink)
	}
}

func (c *Console) cmdNext() {
	rec, ok := c.selector.Next()
	if !ok {
		fmt.Fprintln(c.out, "No proxy available.")
		return
	}
	fmt.Fprintf(c.out, "Switched to proxy: %s (latency: %dms)\n", rec.Address, rec.Latency.Milliseconds())
}

func (c *Console) cmdGoto(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: goto <n>")
		return
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintln(c.out, "Usage: goto <n>")
		return
	}
	rec, err := c.selector.Goto(index)
	if err != nil {
		if errors.Is(err, proxypool.ErrIndexOutOfRange) {
			fmt.Fprintf(c.out, "No proxy at position %d.\n", index)
		} else {
			fmt.Fprintf(c.out, "goto failed: %v\n", err)
		}
		return
	}
	fmt.Fprintf(c.out, "Switched to proxy: %s (latency: %dms)\n", rec.Address, rec.Latency.Milliseconds())
}

func (c *Console) cmdPing() {
	fmt.Fprintln(c.out, "Re-testing all proxies...")
	c.pool.Sweep()
	c.PrintList()
}
