package bridge

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sunstory/openusage/internal/metrics"
)

// LSDiscoverOptions mirrors host.ls.discover's script-facing argument object.
type LSDiscoverOptions struct {
	ProcessName string
	Markers     []string
	CSRFFlag    string
	PortFlag    string
	ExtraFlags  []string
}

// LSDiscoverResult is the discovered process's identity and listening ports.
// A nil result with a nil error means "not found", not an error.
type LSDiscoverResult struct {
	PID           int
	CSRF          string
	Ports         []int
	Extra         map[string]string
	ExtensionPort *int
}

// LSDiscover implements host.ls.discover: finds a locally running provider
// helper process by name + path markers, extracts its CSRF token and any
// requested extra flags from its command line, and resolves the TCP ports
// it owns.
func (b *Bridge) LSDiscover(opts LSDiscoverOptions) (*LSDiscoverResult, error) {
	metrics.BridgeCall(b.pluginID, "ls.discover")
	if opts.CSRFFlag == "" {
		return nil, fmt.Errorf("ls.discover requires csrfFlag")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	procs, err := listProcesses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	match := bestMarkerMatch(procs, opts.ProcessName, opts.Markers)
	if match == nil {
		return nil, nil
	}

	csrf, ok := extractFlagValue(match.cmdline, opts.CSRFFlag)
	if !ok {
		b.Log("warn", fmt.Sprintf("ls.discover: pid %d matched but missing %s", match.pid, opts.CSRFFlag))
		return nil, nil
	}

	result := &LSDiscoverResult{PID: match.pid, CSRF: csrf, Extra: map[string]string{}}

	if opts.PortFlag != "" {
		if v, ok := extractFlagValue(match.cmdline, opts.PortFlag); ok {
			if n, err := strconv.Atoi(v); err == nil {
				result.ExtensionPort = &n
			}
		}
	}
	for _, flag := range opts.ExtraFlags {
		if v, ok := extractFlagValue(match.cmdline, flag); ok {
			result.Extra[strings.TrimLeft(flag, "-")] = v
		}
	}

	ports, err := listeningPorts(ctx, match.pid)
	if err != nil {
		b.Log("warn", fmt.Sprintf("ls.discover: port lookup failed for pid %d: %v", match.pid, err))
	}
	result.Ports = ports

	b.Log("info", fmt.Sprintf("ls.discover: matched pid %d with %d ports", match.pid, len(result.Ports)))
	return result, nil
}

type processEntry struct {
	pid     int
	command string
	cmdline string
}

// listProcesses shells out to `ps` (Unix) or PowerShell (Windows) for the
// full command line of every running process. Per spec.md §9's open
// question, PowerShell discovery exists mainly for Codeium/Windsurf and may
// go unexercised by other providers.
func listProcesses(ctx context.Context) ([]processEntry, error) {
	if runtime.GOOS == "windows" {
		return listProcessesWindows(ctx)
	}
	out, err := exec.CommandContext(ctx, "ps", "-axo", "pid=,command=").Output()
	if err != nil {
		return nil, err
	}
	var entries []processEntry
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		cmdline := ""
		if len(fields) > 1 {
			cmdline = fields[1]
		}
		entries = append(entries, processEntry{pid: pid, command: cmdline, cmdline: cmdline})
	}
	return entries, nil
}

func listProcessesWindows(ctx context.Context) ([]processEntry, error) {
	script := "Get-CimInstance Win32_Process | Select-Object ProcessId,CommandLine | ForEach-Object { \"$($_.ProcessId)`t$($_.CommandLine)\" }"
	out, err := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script).Output()
	if err != nil {
		return nil, err
	}
	var entries []processEntry
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		pid, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			continue
		}
		cmdline := ""
		if len(fields) > 1 {
			cmdline = fields[1]
		}
		entries = append(entries, processEntry{pid: pid, command: cmdline, cmdline: cmdline})
	}
	return entries, nil
}

// markerRank scores how a candidate process matches one marker, per
// spec.md §4.4's precedence: exact --ide_name= match beats exact
// --app_data_dir= match beats a bare path substring. Lower is better; 0
// means no match.
func markerRank(cmdline, marker string) int {
	if v, ok := extractFlagValue(cmdline, "--ide_name"); ok && v == marker {
		return 1
	}
	if v, ok := extractFlagValue(cmdline, "--app_data_dir"); ok && v == marker {
		return 2
	}
	sep := "/"
	if runtime.GOOS == "windows" {
		sep = `\`
	}
	if strings.Contains(cmdline, sep+marker+sep) {
		return 3
	}
	return 0
}

// bestMarkerMatch finds the process whose command line contains
// processName (matched as a lowercased substring, per spec.md §4.4) and
// matches at least one marker, preferring the highest-precedence match
// across all candidates and all markers (lowest markerRank). This prevents
// e.g. "windsurf" matching "windsurf-next" when a higher-precedence exact
// match for "windsurf" exists.
func bestMarkerMatch(procs []processEntry, processName string, markers []string) *processEntry {
	var best *processEntry
	bestRank := 0
	lowerProcessName := strings.ToLower(processName)
	for i := range procs {
		p := &procs[i]
		if !strings.Contains(strings.ToLower(p.command), lowerProcessName) {
			continue
		}
		for _, m := range markers {
			rank := markerRank(p.cmdline, m)
			if rank == 0 {
				continue
			}
			if best == nil || rank < bestRank {
				best, bestRank = p, rank
			}
		}
	}
	return best
}

var flagValuePattern = regexp.MustCompile(`\s`)

// extractFlagValue supports both "--flag value" and "--flag=value" forms.
func extractFlagValue(cmdline, flag string) (string, bool) {
	if idx := strings.Index(cmdline, flag+"="); idx >= 0 {
		rest := cmdline[idx+len(flag)+1:]
		end := flagValuePattern.FindStringIndex(rest)
		if end == nil {
			return rest, true
		}
		return rest[:end[0]], true
	}
	if idx := strings.Index(cmdline, flag+" "); idx >= 0 {
		rest := strings.TrimSpace(cmdline[idx+len(flag):])
		end := flagValuePattern.FindStringIndex(rest)
		if end == nil {
			return rest, rest != ""
		}
		return rest[:end[0]], true
	}
	return "", false
}

// listeningPorts resolves TCP ports owned by pid via lsof (Unix) or netstat
// (Windows), deduplicated and sorted ascending.
func listeningPorts(ctx context.Context, pid int) ([]int, error) {
	if runtime.GOOS == "windows" {
		return listeningPortsWindows(ctx, pid)
	}
	out, err := exec.CommandContext(ctx, "lsof", "-nP", "-iTCP", "-sTCP:LISTEN", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		// lsof exits non-zero when a process has no matching sockets; that's
		// "no ports", not an error condition worth propagating.
		return nil, nil
	}
	seen := map[int]struct{}{}
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		addr := fields[len(fields)-1]
		port := parseTrailingPort(addr)
		if port > 0 {
			seen[port] = struct{}{}
		}
	}
	return sortedPorts(seen), nil
}

func listeningPortsWindows(ctx context.Context, pid int) ([]int, error) {
	out, err := exec.CommandContext(ctx, "netstat", "-ano", "-p", "TCP").Output()
	if err != nil {
		return nil, err
	}
	pidStr := strconv.Itoa(pid)
	seen := map[int]struct{}{}
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[len(fields)-1] != pidStr {
			continue
		}
		if !strings.Contains(fields[3], "LISTEN") {
			continue
		}
		if port := parseTrailingPort(fields[1]); port > 0 {
			seen[port] = struct{}{}
		}
	}
	return sortedPorts(seen), nil
}

func parseTrailingPort(addr string) int {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return 0
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return 0
	}
	return port
}

func sortedPorts(seen map[int]struct{}) []int {
	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}
