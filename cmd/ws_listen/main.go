// ws_listen prints the state stream of a running scratchd.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var version = "dev"

type options struct {
	wsURL      string
	transforms bool
	layout     []int
}

func main() {
	var opts options

	cmd := &cobra.Command{
		Use:   "ws_listen",
		Short: "Print scratchd state updates",
		Long: `ws_listen connects to the scratchd state websocket and prints the
initial state, sample changes and every triggered clip. Rotation updates
are summarised unless --transforms is given.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.wsURL, "ws", "ws://127.0.0.1:3002/ws", "scratchd state websocket URL")
	cmd.Flags().BoolVar(&opts.transforms, "transforms", false, "print every transform frame")
	cmd.Flags().IntSliceVar(&opts.layout, "layout", nil, "send view_w,view_h,content_w,content_h after connecting")

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	u, err := url.Parse(opts.wsURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	slog.Info("connecting", "url", u.String())
	conn, _, err := d.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()
	slog.Info("connected (press Ctrl+C to exit)")

	// Protects concurrent writes to the websocket.
	var writeMu sync.Mutex
	write := func(msgType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(msgType, data)
	}

	if len(opts.layout) > 0 {
		msg, err := layoutMessage(opts.layout)
		if err != nil {
			return err
		}
		if err := write(websocket.TextMessage, msg); err != nil {
			return fmt.Errorf("send layout: %w", err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(20 * time.Second)
	defer pingTicker.Stop()
	go func() {
		for range pingTicker.C {
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()

	p := &printer{out: out, transforms: opts.transforms}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("websocket error", "error", err)
				}
				return
			}
			// The daemon pings us; any frame proves it is alive.
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if messageType == websocket.TextMessage {
				p.handle(message)
			}
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		err := write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			slog.Warn("error closing connection", "error", err)
		}
	case <-done:
		slog.Info("connection closed")
	}
	return nil
}

func layoutMessage(dims []int) ([]byte, error) {
	if len(dims) != 4 {
		return nil, fmt.Errorf("--layout needs 4 values, got %d", len(dims))
	}
	data, err := json.Marshal(map[string]int{
		"view_width":     dims[0],
		"view_height":    dims[1],
		"content_width":  dims[2],
		"content_height": dims[3],
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"type": "layout_changed", "data": json.RawMessage(data)})
}

// printer renders frames as one line each.
type printer struct {
	out        io.Writer
	transforms bool

	// lastTurn is the last printed whole turn count; nil before the first.
	lastTurn *int
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (p *printer) handle(message []byte) {
	var f frame
	if err := json.Unmarshal(message, &f); err != nil {
		fmt.Fprintf(p.out, "[TEXT] %s\n", message)
		return
	}

	switch f.Type {
	case "state_init":
		var s struct {
			Sample  string   `json:"sample"`
			Samples []string `json:"samples"`
			Mode    string   `json:"mode"`
		}
		if json.Unmarshal(f.Data, &s) == nil {
			fmt.Fprintf(p.out, "[STATE] sample=%s samples=%v mode=%s\n", s.Sample, s.Samples, s.Mode)
		}

	case "sample_changed":
		var s struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(f.Data, &s) == nil {
			fmt.Fprintf(p.out, "[SAMPLE] %s\n", s.Name)
		}

	case "playback":
		var pb struct {
			Kind     string  `json:"kind"`
			Velocity float64 `json:"velocity"`
			Clip     string  `json:"clip"`
			Pitch    float64 `json:"pitch"`
		}
		if json.Unmarshal(f.Data, &pb) == nil {
			fmt.Fprintf(p.out, "[PLAY] %-8s clip=%s pitch=%.2f velocity=%.0f px/s\n", pb.Kind, pb.Clip, pb.Pitch, pb.Velocity)
		}

	case "transform":
		var tr struct {
			RotateDegrees float64 `json:"rotate_degrees"`
		}
		if json.Unmarshal(f.Data, &tr) != nil {
			return
		}
		if p.transforms {
			fmt.Fprintf(p.out, "[TRANSFORM] %.1f deg\n", tr.RotateDegrees)
			return
		}
		// Only report completed turns.
		turn := int(math.Floor(tr.RotateDegrees / 360))
		if p.lastTurn == nil || *p.lastTurn != turn {
			p.lastTurn = &turn
			fmt.Fprintf(p.out, "[TURN] %d\n", turn)
		}

	default:
		pretty, _ := json.MarshalIndent(f, "", "  ")
		fmt.Fprintf(p.out, "[%s]\n%s\n", f.Type, pretty)
	}
}
