package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/faults"
	"github.com/kozaktomas/face-attendance/internal/registry"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Capture face samples and register a student",
	Long: `Capture face samples from the camera and register a new student.

Samples are written to the training directory as
{name}.{serial}.{id}.{n}.jpg and the student is appended to the registry.
Run "face-attendance train" afterwards to refresh the model.

Examples:
  face-attendance enroll --id CS2021001 --name "Ada Lovelace" \
    --department "Computer Science" --branch Engineering --program B.Tech`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("id", "", "Student id (required)")
	enrollCmd.Flags().String("name", "", "Student name, letters and spaces only (required)")
	enrollCmd.Flags().String("department", "", "Department")
	enrollCmd.Flags().String("branch", "", "Branch")
	enrollCmd.Flags().String("program", "", "Program")
	enrollCmd.Flags().Int("samples", 0, "Samples to capture (default from config)")
	enrollCmd.Flags().Bool("force", false, "Continue past duplicate id/name collisions")
	_ = enrollCmd.MarkFlagRequired("id")
	_ = enrollCmd.MarkFlagRequired("name")
}

func checkEnum(kind, value string, allowed []string) error {
	if value == "" || slices.Contains(allowed, value) {
		return nil
	}
	return faults.Validation("unknown %s %q (allowed: %v)", kind, value, allowed)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id := mustGetString(cmd, "id")
	name := mustGetString(cmd, "name")
	department := mustGetString(cmd, "department")
	branch := mustGetString(cmd, "branch")
	program := mustGetString(cmd, "program")

	if err := checkEnum("department", department, a.cfg.Academics.Departments); err != nil {
		return err
	}
	if err := checkEnum("branch", branch, a.cfg.Academics.Branches); err != nil {
		return err
	}
	if err := checkEnum("program", program, a.cfg.Academics.Programs); err != nil {
		return err
	}

	maxSamples := mustGetInt(cmd, "samples")
	if maxSamples <= 0 {
		maxSamples = a.cfg.Recognition.MaxSamples
	}

	var onDupID, onDupName registry.DuplicateDecision = registry.Abort, registry.Abort
	if mustGetBool(cmd, "force") {
		onDupID, onDupName = registry.Continue, registry.Continue
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := progressbar.Default(int64(maxSamples), "capturing")
	a.pipeline.OnSample = func(n int) { _ = bar.Set(n) }

	student := registry.Student{
		ID:         id,
		Name:       name,
		Department: department,
		Branch:     branch,
		Program:    program,
	}
	result, err := a.pipeline.Capture(ctx, student, maxSamples, onDupID, onDupName)
	if err != nil {
		return err
	}
	_ = bar.Finish()

	fmt.Printf("Registered %s (serial %d) with %d samples\n", result.Student.ID, result.Student.Serial, result.Samples)
	if result.DefaultPassword != "" {
		fmt.Printf("Student account created. Username: %s  Password: %s\n", result.Student.ID, result.DefaultPassword)
		fmt.Println("Ask the student to change the password after first login.")
	}
	fmt.Println("Run \"face-attendance train\" to update the model.")
	return nil
}
