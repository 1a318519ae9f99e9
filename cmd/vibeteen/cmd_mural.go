package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vibeteen/vibe-teen/internal/category"
	"github.com/vibeteen/vibe-teen/internal/live"
	"github.com/vibeteen/vibe-teen/internal/model"
	"github.com/vibeteen/vibe-teen/internal/mural"
)

var (
	actFor string

	watchZoomIn  int
	watchZoomOut int
	watchRadius  int
	watchClear   bool
	watchOnce    bool
)

var actCmd = &cobra.Command{
	Use:   "act <prayed|cared|shared>",
	Short: "Register an action on the mural",
	Long: `Register what you did today. The Portuguese names (orei, cuidei,
compartilhei) work too.

The server only acknowledges the request; the card shows up on every mural
with the next feed update.`,
	Args: cobra.ExactArgs(1),
	RunE: runAct,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the mural counters",
	RunE:  runStats,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the mural live in the terminal",
	RunE:  runWatch,
}

func addMuralCommands(root *cobra.Command) {
	actCmd.Flags().StringVar(&actFor, "for", "", "who was blessed (default \""+model.DefaultBeneficiary+"\")")

	watchCmd.Flags().IntVar(&watchZoomIn, "zoom-in", 0, "zoom in this many steps after connecting")
	watchCmd.Flags().IntVar(&watchZoomOut, "zoom-out", 0, "zoom out this many steps after connecting")
	watchCmd.Flags().IntVar(&watchRadius, "radius", 4, "rings shown around the center at zoom 1")
	watchCmd.Flags().BoolVar(&watchClear, "clear", true, "clear the screen before each frame")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "exit after the first feed frame")

	root.AddCommand(actCmd, statsCmd, watchCmd)
}

func runAct(cmd *cobra.Command, args []string) error {
	cat, err := category.Parse(args[0])
	if err != nil {
		return err
	}

	ids, err := identityProvider()
	if err != nil {
		return err
	}
	prof, err := requireProfile(ids)
	if err != nil {
		return err
	}
	c, err := newClient(prof)
	if err != nil {
		return err
	}

	if err := c.Register(cmd.Context(), actFor, string(cat)); err != nil {
		return fmt.Errorf("act: %w", err)
	}
	meta := category.Default().MustLookup(cat)
	fmt.Fprintf(cmd.OutOrStdout(), "%s registrado! %s\n", meta.Label, meta.Verse)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ids, err := identityProvider()
	if err != nil {
		return err
	}
	prof, err := currentProfile(ids)
	if err != nil {
		return err
	}
	c, err := newClient(prof)
	if err != nil {
		return err
	}

	s, err := c.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	out := cmd.OutOrStdout()
	table := category.Default()
	for _, cat := range model.Categories() {
		counts := s.Categories[cat]
		fmt.Fprintf(out, "%c %-14s total %-4d hoje %d\n", mural.Glyph(cat), table.MustLookup(cat).Label, counts.Total, counts.Today)
	}
	fmt.Fprintf(out, "total %d · missão %d%%\n", s.Total, s.Progress)
	if s.Mine != nil {
		fmt.Fprintf(out, "suas ações: %d\n", *s.Mine)
	}
	if len(s.Recent) > 0 {
		fmt.Fprintln(out, "recentes:")
		for _, a := range s.Recent {
			fmt.Fprintf(out, "  %c %s por %s\n", mural.Glyph(a.Category), a.AuthorName, a.BeneficiaryName)
		}
	}
	if s.Syncing {
		fmt.Fprintln(out, "(sincronizando…)")
	}
	fmt.Fprintf(out, "“%s”\n", s.Quote)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ids, err := identityProvider()
	if err != nil {
		return err
	}
	prof, err := currentProfile(ids)
	if err != nil {
		return err
	}
	c, err := newClient(prof)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := c.Watch(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Next blocks in a read; closing the connection is what unblocks it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for range watchZoomIn {
		if err := conn.Send(live.Inbound{Type: live.MsgZoom, Dir: "in"}); err != nil {
			return err
		}
	}
	for range watchZoomOut {
		if err := conn.Send(live.Inbound{Type: live.MsgZoom, Dir: "out"}); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	var (
		frame   *mural.Frame
		mission string
	)
	for {
		msg, err := conn.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		}

		switch msg.Type {
		case live.FrameFeed:
			if msg.Frame == nil {
				continue
			}
			frame = msg.Frame
		case live.FrameViewport:
			if frame == nil || msg.Viewport == nil {
				continue
			}
			frame.Viewport = *msg.Viewport
			frame.Transform = msg.Transform
		case live.FrameStatus:
			if frame == nil || msg.Syncing == nil {
				continue
			}
			frame.Syncing = *msg.Syncing
		case live.FrameMission:
			mission = msg.Message
		case live.FrameNotice:
			fmt.Fprintf(w, "! %s\n", msg.Message)
			continue
		default:
			continue
		}
		if frame == nil {
			continue
		}
		if mission != "" {
			frame.Mission = mission
		}

		if watchClear {
			fmt.Fprint(w, "\033[H\033[2J")
		}
		if err := mural.RenderText(w, *frame, mural.TextOptions{Radius: watchRadius, Legend: true}); err != nil {
			return err
		}
		if watchOnce && msg.Type == live.FrameFeed {
			return nil
		}
	}
}
