package main

import (
	"context"
	"log"
	"time"

	"github.com/OliverSchlueter/smteepee/internal/smtp"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "testclient",
	Short: "Send a test message to a running smteepee listener",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetStringSlice("to")
		subject, _ := cmd.Flags().GetString("subject")
		body, _ := cmd.Flags().GetString("body")

		lines, err := smtp.ComposeLines(from, to, subject, body)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := smtp.SendMail(ctx, addr, from, to, lines); err != nil {
			return err
		}

		log.Printf("Sent %d lines to %s", len(lines), addr)
		return nil
	},
}

func init() {
	rootCmd.Flags().String("addr", smtp.DefaultAddr, "Listener address")
	rootCmd.Flags().String("from", "peter@otherdomain.com", "Sender address")
	rootCmd.Flags().StringSlice("to", []string{"oliver@localhost"}, "Recipient addresses")
	rootCmd.Flags().String("subject", "Why are you not using go-mail yet?", "Subject line")
	rootCmd.Flags().String("body", "You won't need a sales pitch. It's FOSS.", "Plain text body")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("failed to send mail: %s", err)
	}
}
