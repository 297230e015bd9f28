// scratch-ctl drives a running scratchd over its IPC socket.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var version = "dev"

// Wire types, duplicated from the daemon so this binary stands alone.

type pointer struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	TimestampMs int64   `json:"t_ms"`
}

type contactEnd struct {
	TimestampMs int64 `json:"t_ms,omitempty"`
}

type selectSample struct {
	Name string `json:"name"`
}

type layoutChanged struct {
	ViewWidth     int  `json:"view_width"`
	ViewHeight    int  `json:"view_height"`
	ContentWidth  int  `json:"content_width"`
	ContentHeight int  `json:"content_height"`
	OffsetX       *int `json:"offset_x,omitempty"`
	OffsetY       *int `json:"offset_y,omitempty"`
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ipcResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	State  json.RawMessage `json:"state,omitempty"`
}

var socketPath string

func main() {
	root := &cobra.Command{
		Use:   "scratch-ctl",
		Short: "Control a running scratchd",
		Long: `scratch-ctl sends pointer, sample and lifecycle events to scratchd
through its unix socket, and prints the daemon state.

Coordinates are view pixels, as the daemon's touch input reports them.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&socketPath, "socket", "/tmp/scratchd.sock", "scratchd IPC socket")

	root.AddCommand(
		pointerCmd("begin", "contact_begin", "Put a finger on the record at X Y"),
		pointerCmd("move", "contact_move", "Move the finger to X Y"),
		endCmd(),
		scratchCmd(),
		sampleCmd(),
		simpleCmd("pause", "Stop the idle rotation"),
		simpleCmd("resume", "Restart the idle rotation"),
		layoutCmd(),
		stateCmd(),
	)

	if err := fang.Execute(context.Background(), root); err != nil {
		os.Exit(1)
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }

func pointerCmd(use, typ, short string) *cobra.Command {
	var tMs int64
	cmd := &cobra.Command{
		Use:   use + " X Y",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePoint(args[0], args[1])
			if err != nil {
				return err
			}
			p.TimestampMs = tMs
			if !cmd.Flags().Changed("t-ms") {
				p.TimestampMs = nowMs()
			}
			return send(cmd, typ, p)
		},
	}
	cmd.Flags().Int64Var(&tMs, "t-ms", 0, "event timestamp in milliseconds (default now)")
	return cmd
}

func endCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end",
		Short: "Lift the finger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, "contact_end", contactEnd{TimestampMs: nowMs()})
		},
	}
}

func scratchCmd() *cobra.Command {
	var (
		x, y, dy   float64
		durationMs int64
		steps      int
	)
	cmd := &cobra.Command{
		Use:   "scratch",
		Short: "Perform a whole vertical drag",
		Long: `Perform a vertical drag of --dy pixels over --duration-ms, split into
--steps moves. Negative dy drags up and plays forwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := scratchGesture(x, y, dy, durationMs, steps, nowMs())
			if err != nil {
				return err
			}
			return sendLines(cmd, lines)
		},
	}
	cmd.Flags().Float64Var(&x, "x", 100, "horizontal position")
	cmd.Flags().Float64Var(&y, "y", 400, "start height")
	cmd.Flags().Float64Var(&dy, "dy", -120, "vertical travel in pixels")
	cmd.Flags().Int64Var(&durationMs, "duration-ms", 150, "drag duration")
	cmd.Flags().IntVar(&steps, "steps", 6, "number of moves")
	return cmd
}

// scratchGesture builds begin, evenly spaced moves and end for a drag.
func scratchGesture(x, y, dy float64, durationMs int64, steps int, startMs int64) ([][]byte, error) {
	if steps < 1 {
		return nil, fmt.Errorf("steps must be >= 1")
	}
	if durationMs < 1 {
		return nil, fmt.Errorf("duration-ms must be >= 1")
	}

	var lines [][]byte
	add := func(typ string, payload any) error {
		line, err := marshalEnvelope(typ, payload)
		if err != nil {
			return err
		}
		lines = append(lines, line)
		return nil
	}

	if err := add("contact_begin", pointer{X: x, Y: y, TimestampMs: startMs}); err != nil {
		return nil, err
	}
	for i := 1; i <= steps; i++ {
		p := pointer{
			X:           x,
			Y:           y + dy*float64(i)/float64(steps),
			TimestampMs: startMs + durationMs*int64(i)/int64(steps),
		}
		if err := add("contact_move", p); err != nil {
			return nil, err
		}
	}
	if err := add("contact_end", contactEnd{TimestampMs: startMs + durationMs}); err != nil {
		return nil, err
	}
	return lines, nil
}

func sampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample NAME",
		Short: "Select the active sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, "select_sample", selectSample{Name: args[0]})
		},
	}
}

func simpleCmd(typ, short string) *cobra.Command {
	return &cobra.Command{
		Use:   typ,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, typ, nil)
		},
	}
}

func layoutCmd() *cobra.Command {
	var offsetX, offsetY int
	cmd := &cobra.Command{
		Use:   "layout VIEW_W VIEW_H CONTENT_W CONTENT_H",
		Short: "Report the renderer geometry",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dims [4]int
			for i, a := range args {
				v, err := strconv.Atoi(a)
				if err != nil {
					return fmt.Errorf("invalid size %q: %w", a, err)
				}
				dims[i] = v
			}
			l := layoutChanged{ViewWidth: dims[0], ViewHeight: dims[1], ContentWidth: dims[2], ContentHeight: dims[3]}
			if cmd.Flags().Changed("offset-x") {
				l.OffsetX = &offsetX
			}
			if cmd.Flags().Changed("offset-y") {
				l.OffsetY = &offsetY
			}
			return send(cmd, "layout_changed", l)
		},
	}
	cmd.Flags().IntVar(&offsetX, "offset-x", 0, "content centre distance from the right edge (default centred)")
	cmd.Flags().IntVar(&offsetY, "offset-y", 0, "content centre distance from the bottom edge (default centred)")
	return cmd
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the daemon state as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := marshalEnvelope("request_state", nil)
			if err != nil {
				return err
			}
			resp, err := roundTrip(socketPath, [][]byte{line})
			if err != nil {
				return err
			}
			var pretty any
			if err := json.Unmarshal(resp.State, &pretty); err != nil {
				return fmt.Errorf("decode state: %w", err)
			}
			out, err := json.MarshalIndent(pretty, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func parsePoint(xs, ys string) (pointer, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return pointer{}, fmt.Errorf("invalid x %q: %w", xs, err)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return pointer{}, fmt.Errorf("invalid y %q: %w", ys, err)
	}
	return pointer{X: x, Y: y}, nil
}

func marshalEnvelope(typ string, payload any) ([]byte, error) {
	env := envelope{Type: typ}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", typ, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

func send(cmd *cobra.Command, typ string, payload any) error {
	line, err := marshalEnvelope(typ, payload)
	if err != nil {
		return err
	}
	return sendLines(cmd, [][]byte{line})
}

func sendLines(cmd *cobra.Command, lines [][]byte) error {
	if _, err := roundTrip(socketPath, lines); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}

// roundTrip writes each line on one connection and checks every response.
// It returns the last response.
func roundTrip(socketPath string, lines [][]byte) (ipcResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return ipcResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	dec := json.NewDecoder(conn)
	var resp ipcResponse
	for _, line := range lines {
		if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
			return ipcResponse{}, fmt.Errorf("send: %w", err)
		}
		resp = ipcResponse{}
		if err := dec.Decode(&resp); err != nil {
			return ipcResponse{}, fmt.Errorf("decode response: %w", err)
		}
		if resp.Status == "error" {
			return resp, fmt.Errorf("daemon error: %s", resp.Error)
		}
	}
	return resp, nil
}
