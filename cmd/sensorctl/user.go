package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/couchcryptid/sensor-dashboard-service/internal/auth"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/cobra"
)

var (
	userDB       string
	userName     string
	userPassword string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage dashboard logins",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user or reset a password",
	Long: `Stores a bcrypt hash of the password. With --password - the password is
read from the first line of stdin.`,
	RunE: runUserAdd,
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove a user",
	RunE:  runUserDelete,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE:  runUserList,
}

func init() {
	userCmd.PersistentFlags().StringVar(&userDB, "db", "", "user database (default is $USERS_DB or ./users.db)")
	userAddCmd.Flags().StringVar(&userName, "username", "", "username (required)")
	userAddCmd.Flags().StringVar(&userPassword, "password", "", "password, or - to read from stdin (required)")
	_ = userAddCmd.MarkFlagRequired("username")
	_ = userAddCmd.MarkFlagRequired("password")
	userDeleteCmd.Flags().StringVar(&userName, "username", "", "username (required)")
	_ = userDeleteCmd.MarkFlagRequired("username")

	userCmd.AddCommand(userAddCmd, userDeleteCmd, userListCmd)
	rootCmd.AddCommand(userCmd)
}

func openUsers() (*auth.UserStore, error) {
	path := userDB
	if path == "" {
		path = sharedcfg.EnvOrDefault("USERS_DB", "users.db")
	}
	return auth.OpenUserStore(path)
}

func runUserAdd(cmd *cobra.Command, _ []string) error {
	password := userPassword
	if password == "-" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	users, err := openUsers()
	if err != nil {
		return err
	}
	defer users.Close()

	if err := users.PutUser(cmd.Context(), userName, password); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "User %s saved\n", userName)
	return nil
}

func runUserDelete(cmd *cobra.Command, _ []string) error {
	users, err := openUsers()
	if err != nil {
		return err
	}
	defer users.Close()

	if err := users.DeleteUser(cmd.Context(), userName); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "User %s removed\n", userName)
	return nil
}

func runUserList(cmd *cobra.Command, _ []string) error {
	users, err := openUsers()
	if err != nil {
		return err
	}
	defer users.Close()

	names, err := users.ListUsers(cmd.Context())
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "No users")
		return nil
	}
	for _, n := range names {
		fmt.Fprintln(cmd.OutOrStdout(), n)
	}
	return nil
}
