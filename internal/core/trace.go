// Package core drives the reorder window (or, in DRAM-trace mode, the
// memory system directly) from a trace file, matching §4.8 and the trace
// formats of §6.
package core

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/suprax/dramsim/internal/simerr"
)

// CPULine is one parsed record of "<bubble_cnt> <read_addr> [<write_addr>]".
type CPULine struct {
	BubbleCount int64
	ReadAddr    uint64
	HasWrite    bool
	WriteAddr   uint64
}

// CPUTrace holds every parsed line and a cursor; Next loops back to the
// start when Loop is set (filtered mode, §6: "loops EOF -> seek to start
// in filtered mode for multi-program alignment").
type CPUTrace struct {
	lines []CPULine
	pos   int
	Loop  bool
}

func parseAddr(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

// LoadCPUTrace reads and parses an entire CPU trace file.
func LoadCPUTrace(path string) (*CPUTrace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, simerr.Trace("LoadCPUTrace", "cannot open trace file", err)
	}
	defer f.Close()
	return parseCPUTrace(f)
}

func parseCPUTrace(r io.Reader) (*CPUTrace, error) {
	t := &CPUTrace{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, simerr.Trace("parseCPUTrace", "malformed line: "+line, nil)
		}
		bubbles, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, simerr.Trace("parseCPUTrace", "bad bubble_cnt: "+fields[0], err)
		}
		readAddr, err := parseAddr(fields[1])
		if err != nil {
			return nil, simerr.Trace("parseCPUTrace", "bad read_addr: "+fields[1], err)
		}
		rec := CPULine{BubbleCount: bubbles, ReadAddr: readAddr}
		if len(fields) >= 3 {
			writeAddr, err := parseAddr(fields[2])
			if err != nil {
				return nil, simerr.Trace("parseCPUTrace", "bad write_addr: "+fields[2], err)
			}
			rec.HasWrite = true
			rec.WriteAddr = writeAddr
		}
		t.lines = append(t.lines, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, simerr.Trace("parseCPUTrace", "scan failed", err)
	}
	return t, nil
}

// Next returns the next line, or ok=false once exhausted (and not
// looping).
func (t *CPUTrace) Next() (CPULine, bool) {
	if t.pos >= len(t.lines) {
		if !t.Loop || len(t.lines) == 0 {
			return CPULine{}, false
		}
		t.pos = 0
	}
	l := t.lines[t.pos]
	t.pos++
	return l, true
}

// Exhausted reports whether a non-looping trace has run out of lines.
func (t *CPUTrace) Exhausted() bool { return !t.Loop && t.pos >= len(t.lines) }

// DRAMLine is one parsed record of "<addr_hex> [R|W]" (default R, §6).
type DRAMLine struct {
	Addr    uint64
	IsWrite bool
}

// DRAMTrace holds every parsed line of a raw DRAM trace and a cursor.
type DRAMTrace struct {
	lines []DRAMLine
	pos   int
}

// LoadDRAMTrace reads and parses an entire DRAM trace file.
func LoadDRAMTrace(path string) (*DRAMTrace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, simerr.Trace("LoadDRAMTrace", "cannot open trace file", err)
	}
	defer f.Close()
	return parseDRAMTrace(f)
}

func parseDRAMTrace(r io.Reader) (*DRAMTrace, error) {
	t := &DRAMTrace{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		addr, err := strconv.ParseUint(fields[0], 16, 64)
		if err != nil {
			return nil, simerr.Trace("parseDRAMTrace", "bad addr: "+fields[0], err)
		}
		rec := DRAMLine{Addr: addr}
		if len(fields) >= 2 && strings.EqualFold(fields[1], "W") {
			rec.IsWrite = true
		}
		t.lines = append(t.lines, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, simerr.Trace("parseDRAMTrace", "scan failed", err)
	}
	return t, nil
}

// Next returns the next line, or ok=false once exhausted.
func (t *DRAMTrace) Next() (DRAMLine, bool) {
	if t.pos >= len(t.lines) {
		return DRAMLine{}, false
	}
	l := t.lines[t.pos]
	t.pos++
	return l, true
}

// Exhausted reports whether the trace has run out of lines.
func (t *DRAMTrace) Exhausted() bool { return t.pos >= len(t.lines) }
