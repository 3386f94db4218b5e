// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/noolite/pkg/mtrf"
)

var (
	replayEventsOnly bool
	replayHex        bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Print the frames stored in a capture file",
	Long: `Decode a capture file written by 'raw_log --capture' or 'bridge --capture'
and print every frame with its original timestamp and direction.

No connection is opened.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayEventsOnly, "events", false, "Only print events from remotes and sensors")
	replayCmd.Flags().BoolVar(&replayHex, "hex", false, "Print raw frame bytes")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	summary, err := replayCapture(os.Stdout, f, replayEventsOnly, replayHex)
	fmt.Printf("\n%d frames (%d sent, %d received, %d malformed)\n",
		summary.total, summary.sent, summary.received, summary.malformed)
	return err
}

type replaySummary struct {
	total     int
	sent      int
	received  int
	malformed int
}

// replayCapture prints the records of a capture stream
func replayCapture(w io.Writer, r io.Reader, eventsOnly, showHex bool) (replaySummary, error) {
	var summary replaySummary
	reader := mtrf.NewCaptureReader(r)
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return summary, nil
		}
		if err != nil {
			return summary, err
		}
		summary.total++

		if rec.Direction == mtrf.DirectionTX {
			summary.sent++
			if !eventsOnly {
				fmt.Fprintf(w, "[%s] TX %s\n", rec.Time().Format("15:04:05.000"), mtrf.FormatHex(rec.Frame))
			}
			continue
		}

		summary.received++
		resp, err := mtrf.ParseFrame(rec.Frame)
		if err != nil {
			summary.malformed++
			if !eventsOnly {
				fmt.Fprintf(w, "[%s] [ERROR] %v: %s\n", rec.Time().Format("15:04:05.000"), err, mtrf.FormatHex(rec.Frame))
			}
			continue
		}
		resp.Received = rec.Time()

		if eventsOnly {
			if ev, ok := mtrf.DecodeEvent(resp); ok && resp.Mode.IsIncoming() {
				fmt.Fprintf(w, "[%s] ch=%d %s\n", resp.Received.Format("15:04:05.000"), resp.Channel, mtrf.FormatEvent(ev))
			}
			continue
		}
		if showHex {
			fmt.Fprintf(w, "%s\n", mtrf.FormatHex(rec.Frame))
		}
		fmt.Fprint(w, mtrf.FormatResponse(resp))
	}
}
