package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Manage student registrations",
}

var studentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered students",
	RunE:  runStudentList,
}

var studentRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a registration and everything attached to it",
	Long: `Remove a student registration.

This deletes the registry record, the student's face samples and the
credential file, and renumbers the surviving serials 1..N. Samples of
surviving students are renamed to their new serials so training labels
stay correct. Run "face-attendance train" afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runStudentRemove,
}

var studentVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the data files for structural problems",
	RunE:  runStudentVerify,
}

func init() {
	rootCmd.AddCommand(studentCmd)
	studentCmd.AddCommand(studentListCmd)
	studentCmd.AddCommand(studentRemoveCmd)
	studentCmd.AddCommand(studentVerifyCmd)
}

func runStudentList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	students, err := a.registry.Load()
	if err != nil {
		return err
	}
	count, err := a.registry.Count()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERIAL\tID\tNAME\tDEPARTMENT\tBRANCH\tPROGRAM\tSAMPLES")
	for _, s := range students {
		samples, err := a.pipeline.CountSamples(s.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
			s.Serial, s.ID, s.Name, s.Department, s.Branch, s.Program, samples)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nTotal registrations: %d\n", count)
	return nil
}

func runStudentRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id := args[0]
	removed, err := a.pipeline.Remove(id)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Printf("No registration found for %s\n", id)
		return nil
	}
	fmt.Printf("Removed registration %s\n", id)
	fmt.Println("Run \"face-attendance train\" to refresh the model.")
	return nil
}

func runStudentVerify(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	problems := a.registry.Verify()
	if _, err := os.Stat(a.cfg.Store.SamplesDir); os.IsNotExist(err) {
		problems = append(problems, fmt.Sprintf("samples directory not found: %s", a.cfg.Store.SamplesDir))
	}

	if len(problems) == 0 {
		fmt.Println("All data files look good.")
		return nil
	}
	fmt.Println("Verification found issues:")
	for _, p := range problems {
		fmt.Printf("  - %s\n", p)
	}
	return nil
}
