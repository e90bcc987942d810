package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/faults"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Manage admin and student passwords",
}

var passwdAdminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Change the admin password",
	RunE:  runPasswdAdmin,
}

var passwdStudentCmd = &cobra.Command{
	Use:   "student <id>",
	Short: "Change a student password",
	Args:  cobra.ExactArgs(1),
	RunE:  runPasswdStudent,
}

var passwdResetCmd = &cobra.Command{
	Use:   "reset <id>",
	Short: "Reset a student password to the default (admin only)",
	Long: `Reset a student's password back to the enrollment default.

Requires the admin password. The default password is the first six
characters of the id, lowercased, followed by "123".`,
	Args: cobra.ExactArgs(1),
	RunE: runPasswdReset,
}

func init() {
	rootCmd.AddCommand(passwdCmd)
	passwdCmd.AddCommand(passwdAdminCmd)
	passwdCmd.AddCommand(passwdStudentCmd)
	passwdCmd.AddCommand(passwdResetCmd)

	for _, c := range []*cobra.Command{passwdAdminCmd, passwdStudentCmd} {
		c.Flags().String("current", "", "Current password (required)")
		c.Flags().String("new", "", "New password (required)")
		c.Flags().String("confirm", "", "New password again (required)")
		_ = c.MarkFlagRequired("current")
		_ = c.MarkFlagRequired("new")
		_ = c.MarkFlagRequired("confirm")
	}
	passwdResetCmd.Flags().String("admin-password", "", "Admin password (required)")
	_ = passwdResetCmd.MarkFlagRequired("admin-password")
}

func runPasswdAdmin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	err = a.credentials.ChangeAdmin(
		mustGetString(cmd, "current"),
		mustGetString(cmd, "new"),
		mustGetString(cmd, "confirm"),
	)
	if err != nil {
		return err
	}
	fmt.Println("Admin password changed.")
	return nil
}

func runPasswdStudent(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id := args[0]
	student, err := a.registry.GetByID(id)
	if err != nil {
		return err
	}
	if student == nil {
		return faults.NotFound("student %s is not registered", id)
	}

	err = a.credentials.ChangeStudent(id,
		mustGetString(cmd, "current"),
		mustGetString(cmd, "new"),
		mustGetString(cmd, "confirm"),
	)
	if err != nil {
		return err
	}
	fmt.Printf("Password changed for %s.\n", id)
	return nil
}

func runPasswdReset(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ok, err := a.credentials.VerifyAdmin("admin", mustGetString(cmd, "admin-password"))
	if err != nil {
		return err
	}
	if !ok {
		return faults.Validation("admin password is incorrect")
	}

	id := args[0]
	password, err := a.credentials.ResetStudent(id)
	if err != nil {
		return err
	}
	fmt.Printf("Password for %s reset to: %s\n", id, password)
	return nil
}
