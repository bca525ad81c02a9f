package main

import (
	"context"
	"fmt"
	"math"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/cueline/internal/capture"
	"github.com/satindergrewal/cueline/internal/monitor"
)

const (
	meterFloorDB = -80.0
	meterWidth   = 48
)

var meterFlags struct {
	threshold float64
	duration  time.Duration
}

var (
	meterLow   = lipgloss.Color("#A3BE8C")
	meterHigh  = lipgloss.Color("#BF616A")
	meterEmpty = lipgloss.Color("#4C566A")
	meterMark  = lipgloss.Color("#EBCB8B")

	meterLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#88C0D0"))
	meterHint  = lipgloss.NewStyle().Faint(true)
	meterHit   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2E3440")).Background(meterHigh).Padding(0, 1)
)

var meterCmd = &cobra.Command{
	Use:   "meter",
	Short: "Show the live input level against a trigger threshold",
	Long: `Arms a monitor on the local PortAudio input and draws the smoothed
level. Use it to pick a threshold that the band clears but the room does not.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		log := newLogger(cfg)

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		if meterFlags.duration > 0 {
			var c context.CancelFunc
			ctx, c = context.WithTimeout(ctx, meterFlags.duration)
			defer c()
		}

		mon := monitor.New(capture.NewPortAudio(cfg.SampleRate), log)
		defer mon.Close()
		mon.SetArmed(true, meterFlags.threshold)

		fmt.Println(meterLabel.Render("cueline meter") + meterHint.Render(fmt.Sprintf("  threshold %.1f dB, ctrl-c to stop", meterFlags.threshold)))

		ticker := time.NewTicker(time.Second / 30)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				fmt.Println()
				return nil
			case now := <-ticker.C:
				sample, ok := mon.Tick(now)
				if mon.State() == monitor.Failed {
					fmt.Println()
					return fmt.Errorf("capture: %w", mon.Err())
				}
				if !ok {
					continue
				}
				fmt.Print("\r" + renderMeter(sample.DB, mon.Threshold(), mon.Triggered()))
			}
		}
	},
}

func init() {
	meterCmd.Flags().Float64Var(&meterFlags.threshold, "threshold", -35, "trigger threshold in dBFS")
	meterCmd.Flags().DurationVar(&meterFlags.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
}

// renderMeter draws one line: a level bar from meterFloorDB to 0 dB with the
// threshold marked.
func renderMeter(db, threshold float64, triggered bool) string {
	pos := func(v float64) int {
		r := (v - meterFloorDB) / -meterFloorDB
		return int(math.Round(math.Max(0, math.Min(1, r)) * meterWidth))
	}
	filled, mark := pos(db), pos(threshold)
	if mark >= meterWidth {
		mark = meterWidth - 1
	}

	var b strings.Builder
	for i := range meterWidth {
		cell := lipgloss.NewStyle()
		ch := "█"
		switch {
		case i == mark:
			cell, ch = cell.Foreground(meterMark), "│"
		case i < filled && i >= mark:
			cell = cell.Foreground(meterHigh)
		case i < filled:
			cell = cell.Foreground(meterLow)
		default:
			cell, ch = cell.Foreground(meterEmpty), "░"
		}
		b.WriteString(cell.Render(ch))
	}

	level := fmt.Sprintf(" %6.1f dB ", math.Max(db, meterFloorDB))
	if triggered {
		return b.String() + level + meterHit.Render("TRIGGER")
	}
	return b.String() + level + strings.Repeat(" ", 9)
}
