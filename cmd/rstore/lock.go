package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mirkobrombin/go-rstore/v1/lock"
)

var (
	acquireTimeout time.Duration
	acquireToken   string

	lockCmd = &cobra.Command{
		Use:   "lock",
		Short: "Operate distributed lock queues",
	}

	acquireCmd = &cobra.Command{
		Use:   "acquire [name]",
		Short: "Enqueue a token and wait for the lock",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcquire,
	}

	releaseCmd = &cobra.Command{
		Use:   "release [name] [token]",
		Short: "Remove a token from the queue",
		Args:  cobra.ExactArgs(2),
		RunE:  runRelease,
	}

	statusCmd = &cobra.Command{
		Use:   "status [name]",
		Short: "Show the holder and the waiters",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}
)

func init() {
	lockCmd.AddCommand(acquireCmd, releaseCmd, statusCmd)
	acquireCmd.Flags().DurationVar(&acquireTimeout, "timeout", 10*time.Second, "How long to wait")
	acquireCmd.Flags().StringVar(&acquireToken, "token", "", "Waiter token (random when empty)")
}

func openQueue(cmd *cobra.Command, name string) (*lock.Queue, error) {
	return lock.New(cmd.Context(), client, name, cfg.LockOptions()...)
}

func runAcquire(cmd *cobra.Command, args []string) error {
	q, err := openQueue(cmd, args[0])
	if err != nil {
		return err
	}
	token := acquireToken
	if token == "" {
		token = lock.NewToken()
	}
	res, err := q.Acquire(cmd.Context(), token, acquireTimeout)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "result=%s token=%s\n", res, token)
	return nil
}

func runRelease(cmd *cobra.Command, args []string) error {
	q, err := openQueue(cmd, args[0])
	if err != nil {
		return err
	}
	ok, err := q.Release(cmd.Context(), args[1])
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "released=%t\n", ok)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	q, err := openQueue(cmd, args[0])
	if err != nil {
		return err
	}
	waiters, err := q.Waiters(cmd.Context())
	if err != nil {
		return err
	}
	if len(waiters) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "free")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "holder=%s waiting=[%s]\n", waiters[0], strings.Join(waiters[1:], " "))
	return nil
}
