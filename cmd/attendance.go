package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/ledger"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Query and prune the attendance ledger",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance records",
	Long: `List attendance records across all dates, newest file first.

Date files with a corrupt header are skipped silently.

Examples:
  face-attendance attendance list
  face-attendance attendance list --date 15-01-2024
  face-attendance attendance list --student CS2021001 --json`,
	RunE: runAttendanceList,
}

var attendanceDeleteCmd = &cobra.Command{
	Use:   "delete <date> [id...]",
	Short: "Delete attendance rows or a whole date file",
	Long: `Delete attendance records for one date.

With student ids, the date file is rewritten without those students' rows.
Without ids, the whole date file is removed.

Examples:
  face-attendance attendance delete 15-01-2024 CS2021001
  face-attendance attendance delete 15-01-2024`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAttendanceDelete,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd)
	attendanceCmd.AddCommand(attendanceDeleteCmd)

	attendanceListCmd.Flags().String("date", "", "Only this date (DD-MM-YYYY)")
	attendanceListCmd.Flags().String("student", "", "Only this student id")
	attendanceListCmd.Flags().Bool("json", false, "Output as JSON")
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	filter := ledger.Filter{
		Date:      mustGetString(cmd, "date"),
		StudentID: mustGetString(cmd, "student"),
	}
	records, err := a.ledger.QueryAll(filter)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDEPARTMENT\tBRANCH\tPROGRAM\tDATE\tTIME")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, r.Department, r.Branch, r.Program, r.Date, r.Time)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nFound %d attendance records\n", len(records))
	return nil
}

func runAttendanceDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	date := args[0]
	ids := args[1:]

	if len(ids) == 0 {
		if err := a.ledger.DeleteDate(date); err != nil {
			return err
		}
		fmt.Printf("Deleted attendance file for %s\n", date)
		return nil
	}

	removed, err := a.ledger.DeleteWhere(date, ids)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d attendance rows for %s\n", removed, date)
	return nil
}
