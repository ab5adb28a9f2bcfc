/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/todo-app/apiserver/config"
	"github.com/todo-app/apiserver/internal/auth"
	"github.com/todo-app/apiserver/internal/db"
	"github.com/todo-app/apiserver/internal/services"
	"github.com/todo-app/apiserver/internal/store"
	"golang.org/x/term"
)

var seedInput services.SeedInput

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the bootstrap user and OAuth application",
	Long: `Creates the bootstrap user and the OAuth application used by the
frontend for the password grant. Existing records are left untouched, so the
command can be run on every deploy. The client secret is printed only when
the application is created.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		newLogger(cfg.LogLevel)

		conn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		users := store.NewUserRepository(conn)
		input := seedInput
		if input.Password == "" {
			if _, err := users.GetByUsername(cmd.Context(), input.Username); err != nil {
				password, err := readPassword(cmd)
				if err != nil {
					return err
				}
				input.Password = password
			}
		}

		seeder := services.NewSeedService(users, store.NewOAuthRepository(conn), auth.NewHasher(cfg.Auth.BcryptCost))
		result, err := seeder.Seed(cmd.Context(), input)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if result.UserCreated {
			fmt.Fprintf(out, "created user %s (id %d)\n", result.User.Username, result.User.ID)
		} else {
			fmt.Fprintf(out, "user %s already exists (id %d)\n", result.User.Username, result.User.ID)
		}
		if result.ApplicationCreated {
			fmt.Fprintf(out, "created application %q\n", result.Application.Name)
			fmt.Fprintf(out, "client_id:     %s\n", result.Application.ClientID)
			fmt.Fprintf(out, "client_secret: %s\n", result.ClientSecret)
		} else {
			fmt.Fprintf(out, "application %q already exists\n", result.Application.Name)
			fmt.Fprintf(out, "client_id:     %s\n", result.Application.ClientID)
		}
		return nil
	},
}

func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--password is required when stdin is not a terminal")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(password), nil
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedInput.Username, "username", "admin", "bootstrap username")
	seedCmd.Flags().StringVar(&seedInput.Email, "email", "", "bootstrap email")
	seedCmd.Flags().StringVar(&seedInput.Password, "password", "", "bootstrap password (prompted when omitted)")
	seedCmd.Flags().StringVar(&seedInput.ApplicationName, "app-name", services.DefaultApplicationName, "OAuth application name")
}
