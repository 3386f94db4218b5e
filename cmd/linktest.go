// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/noolite/pkg/mtrf"
)

var linkTestDuration int

var linkTestCmd = &cobra.Command{
	Use:   "link_test",
	Short: "Test connection stability without sending anything",
	Long: `Hold the connection open for a while and report every frame and error.

Nothing is written to the transceiver. Useful for debugging flaky USB
adapters or WebSocket bridges: malformed frames and disconnects are counted
and printed as they happen.

Exit codes:
  0 - Test completed normally
  1 - Test failed
  2 - Connection error`,
	RunE: runLinkTest,
}

func init() {
	rootCmd.AddCommand(linkTestCmd)
	linkTestCmd.Flags().IntVar(&linkTestDuration, "duration", 30, "Test duration in seconds")
}

type linkTestResult struct {
	valid     int
	malformed int
}

func runLinkTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg.Serial)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Connection Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", linkTestDuration)
	fmt.Printf("Listening for frames...\n\n")

	start := time.Now()
	result, err := watchLink(os.Stdout, conn, time.Duration(linkTestDuration)*time.Second)
	printLinkTestResult(time.Since(start), result)

	if err != nil {
		fmt.Printf("Result: FAILED (connection error)\n")
		os.Exit(1)
	}
	if result.malformed > 0 {
		fmt.Printf("Result: PASSED with %d malformed frames\n", result.malformed)
	} else {
		fmt.Printf("Result: PASSED (connection stable)\n")
	}
	return nil
}

// linkEvent is one read result, kept in arrival order
type linkEvent struct {
	resp *mtrf.Response
	bad  error // malformed frame
	err  error // connection error, ends the watch
}

// watchLink reports frames read from conn for duration d, then closes conn
// and waits for the reader to finish. A read error ends the watch early.
func watchLink(w io.Writer, conn io.ReadCloser, d time.Duration) (linkTestResult, error) {
	events := make(chan linkEvent, 16)
	done := make(chan struct{})
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		reader := mtrf.NewFrameReader(conn)
		for {
			var ev linkEvent
			_, resp, err := reader.ReadFrame()
			var frameErr *mtrf.FrameError
			switch {
			case errors.As(err, &frameErr):
				ev.bad = err
			case err != nil:
				ev.err = err
			default:
				resp.Received = time.Now()
				ev.resp = resp
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
			if ev.err != nil {
				return
			}
		}
	}()

	// closing the connection unblocks a pending read
	defer func() {
		close(done)
		conn.Close()
		<-readerDone
	}()

	endTime := time.Now().Add(d)
	var result linkTestResult
	for {
		remaining := time.Until(endTime)
		if remaining <= 0 {
			return result, nil
		}
		select {
		case ev := <-events:
			switch {
			case ev.err != nil:
				fmt.Fprintf(w, "\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), ev.err)
				return result, ev.err
			case ev.bad != nil:
				result.malformed++
				fmt.Fprintf(w, "[%s] Malformed: %v\n", time.Now().Format("15:04:05.000"), ev.bad)
			default:
				result.valid++
				fmt.Fprint(w, mtrf.FormatResponse(ev.resp))
			}

		case <-time.After(min(remaining, time.Second)):
			if time.Until(endTime) > 0 {
				fmt.Fprintf(w, "[%s] Still connected... (%.0fs remaining)\n",
					time.Now().Format("15:04:05.000"), time.Until(endTime).Seconds())
			}
		}
	}
}

func printLinkTestResult(elapsed time.Duration, r linkTestResult) {
	fmt.Printf("\n--- Test Results ---\n")
	fmt.Printf("Duration: %v\n", elapsed.Round(time.Second))
	fmt.Printf("Valid frames: %d\n", r.valid)
	fmt.Printf("Malformed frames: %d\n", r.malformed)
}
