// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/noolite/pkg/mtrf"
)

var (
	rawLogCapture string
	rawLogHex     bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display MTRF-64 frames as they arrive.

Shows each frame with timestamp, mode, command, status and decoded payload:
device state for SEND_STATE answers and events from remotes and sensors.
Malformed frames are reported and the reader realigns on the next start byte.

With --capture every frame is also appended to a CBOR capture file that can be
printed later with 'noolite replay'.

A link statistics summary is printed when the log ends.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVar(&rawLogCapture, "capture", "", "Append frames to a capture file")
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Print raw frame bytes")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg.Serial)
	if err != nil {
		return err
	}
	defer conn.Close()

	var capture *mtrf.CaptureWriter
	if rawLogCapture != "" {
		f, err := os.OpenFile(rawLogCapture, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open capture file: %w", err)
		}
		defer f.Close()
		capture = mtrf.NewCaptureWriter(f)
	}

	fmt.Printf("noolite - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if capture != nil {
		fmt.Printf("Capture: %s\n", rawLogCapture)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	stats, err := logRawFrames(os.Stdout, conn, capture, rawLogHex, time.Now)
	fmt.Printf("\n%s", stats)
	if ctx.Err() != nil {
		// interrupted: the read error comes from closing the port
		return nil
	}
	return err
}

// logRawFrames prints every frame read from r until the stream ends and
// returns the link statistics for the session
func logRawFrames(w io.Writer, r io.Reader, capture *mtrf.CaptureWriter, showHex bool, now func() time.Time) (mtrf.Stats, error) {
	stats := mtrf.Stats{StartTime: time.Now()}
	reader := mtrf.NewFrameReader(r)
	for {
		raw, resp, err := reader.ReadFrame()
		at := now()

		var frameErr *mtrf.FrameError
		switch {
		case errors.As(err, &frameErr):
			stats.FrameErrors++
			fmt.Fprintf(w, "[ERROR] %v: %s\n", err, mtrf.FormatHex(raw))
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, ErrConnectionClosed):
			fmt.Fprintln(w, "Connection closed")
			return stats, nil
		case err != nil:
			return stats, fmt.Errorf("read: %w", err)
		default:
			countFrame(&stats, resp)
			stats.LastActivity = at
			resp.Received = at
			if showHex {
				fmt.Fprintf(w, "%s\n", mtrf.FormatHex(raw))
			}
			fmt.Fprint(w, mtrf.FormatResponse(resp))
		}

		if capture != nil && raw != nil {
			if err := capture.Record(mtrf.DirectionRX, raw, at); err != nil {
				return stats, err
			}
		}
	}
}

func countFrame(stats *mtrf.Stats, resp *mtrf.Response) {
	stats.FramesReceived++
	switch {
	case resp.Mode.IsCommand():
		stats.Responses++
	case resp.Mode.IsIncoming():
		stats.Events++
	default:
		stats.IgnoredFrames++
	}
}
