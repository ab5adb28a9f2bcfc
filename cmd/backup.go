/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/todo-app/apiserver/config"
	"github.com/todo-app/apiserver/internal/db"
	"github.com/todo-app/apiserver/internal/services"
	"github.com/todo-app/apiserver/internal/storage"
	"github.com/todo-app/apiserver/internal/store"
)

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export every user's todos to object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg.LogLevel)

		conn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		objects, err := storage.Open(cmd.Context(), cfg.Storage)
		if err != nil {
			return err
		}

		backup := services.NewBackupService(
			services.NewUserService(store.NewUserRepository(conn)),
			services.NewTodoService(store.NewTodoRepository(conn), nil, logger),
			objects,
			logger,
		)
		result, err := backup.Run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "backed up %d users and %d todos to %s/%s\n",
			result.Users, result.Todos, result.Bucket, result.Prefix)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
}
