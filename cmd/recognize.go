package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/session"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Run a recognition session and record attendance",
	Long: `Run one recognition session: read frames from the camera, match
detected faces against the trained model and append attendance rows for
recognized students. Stop with Ctrl-C.

By default at most one attendance row is written per session, matching the
historical behavior. Set --dedup=student (or ATTENDANCE_DEDUP=student) to
record each recognized student once per session instead.`,
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().Float64("threshold", 0, "Maximum accepted match distance (default from config)")
	recognizeCmd.Flags().String("dedup", "", "Dedup policy: session or student (default from config)")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.loadModel(); err != nil {
		return err
	}

	threshold := mustGetFloat64(cmd, "threshold")
	if threshold <= 0 {
		threshold = a.cfg.Recognition.Threshold
	}
	dedup := mustGetString(cmd, "dedup")
	if dedup == "" {
		dedup = a.cfg.Recognition.Dedup
	}

	opts := session.Options{
		Threshold: threshold,
		Dedup:     dedup,
		Observer: func(e session.Event) {
			switch e.Kind {
			case session.EventRecorded:
				fmt.Printf("recorded  %-12s %-24s distance=%.1f\n", e.Student.ID, e.Student.Name, e.Distance)
			case session.EventMatched:
				fmt.Printf("matched   %-12s %-24s distance=%.1f\n", e.Student.ID, e.Student.Name, e.Distance)
			case session.EventUnknown:
				fmt.Printf("unknown   label=%d distance=%.1f\n", e.Label, e.Distance)
			}
		},
	}

	sess := session.New(a.model, a.registry, a.ledger, a.openCamera, camera.FullFrame, opts, a.logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Session %s started (threshold %.0f, dedup %s). Ctrl-C to stop.\n", sess.ID(), threshold, dedup)
	if err := sess.Run(ctx); err != nil {
		return err
	}
	fmt.Printf("Session stopped. Rows recorded: %d\n", sess.Recorded())
	return nil
}
