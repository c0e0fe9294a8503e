package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aula-chat/aula-go/internal/rest"
)

// meCmd represents the me command
var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the authenticated user",
	Args:  cobra.NoArgs,
	RunE:  runMe,
}

var (
	roomsCount int
	roomsAfter string
)

// roomsCmd represents the rooms command
var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List rooms",
	Long: `List the rooms on the server, one per line.

Use --count and --after to page through large servers.`,
	Args: cobra.NoArgs,
	RunE: runRooms,
}

func init() {
	rootCmd.AddCommand(meCmd)
	rootCmd.AddCommand(roomsCmd)

	roomsCmd.Flags().IntVar(&roomsCount, "count", 0, "Maximum number of rooms to list (default: server default)")
	roomsCmd.Flags().StringVar(&roomsAfter, "after", "", "List rooms after this room id")
}

func runMe(cmd *cobra.Command, args []string) error {
	client, err := newRestClient()
	if err != nil {
		return err
	}
	defer client.Dispose()

	user, err := client.GetCurrentUser(context.Background())
	if err != nil {
		return err
	}
	printUser(cmd.OutOrStdout(), user)
	return nil
}

func printUser(w io.Writer, u *rest.User) {
	fmt.Fprintf(w, "Id:           %s\n", u.ID)
	fmt.Fprintf(w, "Display name: %s\n", u.DisplayName)
	if u.Description != nil && *u.Description != "" {
		fmt.Fprintf(w, "Description:  %s\n", *u.Description)
	}
	fmt.Fprintf(w, "Presence:     %s\n", u.Presence)
	fmt.Fprintf(w, "Current room: %s\n", orNone(u.CurrentRoomID))
}

func runRooms(cmd *cobra.Command, args []string) error {
	client, err := newRestClient()
	if err != nil {
		return err
	}
	defer client.Dispose()

	rooms, err := client.GetRooms(context.Background(), rest.PageQuery{Count: roomsCount, After: roomsAfter})
	if err != nil {
		return err
	}
	printRooms(cmd.OutOrStdout(), rooms)
	return nil
}

func printRooms(w io.Writer, rooms []rest.Room) {
	if len(rooms) == 0 {
		fmt.Fprintln(w, "No rooms")
		return
	}
	for _, r := range rooms {
		entrance := ""
		if r.IsEntrance {
			entrance = " [entrance]"
		}
		fmt.Fprintf(w, "%s  %s%s\n", r.ID, r.Name, entrance)
	}
}
