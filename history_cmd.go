package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show past generations",
		Args:  cobra.NoArgs,
		RunE:  runHistoryList,
	}

	historyRmCmd = &cobra.Command{
		Use:   "rm ID",
		Short: "Delete one history entry",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryRm,
	}

	historyClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete all history entries",
		Args:  cobra.NoArgs,
		RunE:  runHistoryClear,
	}
)

func runHistoryList(cmd *cobra.Command, _ []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	entries, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No generations yet.")
		return nil
	}
	for _, e := range entries {
		voice := e.VoiceName
		if voice == "" {
			voice = "-"
		}
		fmt.Printf("%4d  %s  %-4s %-20s %s\n",
			e.ID, e.CreatedAt.Format("2006-01-02 15:04"), e.Language, voice, e.Text)
	}
	return nil
}

func runHistoryRm(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid history id %q", args[0])
	}

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	removed, err := store.Remove(cmd.Context(), id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no history entry with id %d", id)
	}
	fmt.Println("Removed entry", id)
	return nil
}

func runHistoryClear(cmd *cobra.Command, _ []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	if err := store.Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("History cleared.")
	return nil
}

func init() {
	historyCmd.AddCommand(historyRmCmd, historyClearCmd)
}
