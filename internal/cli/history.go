package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List playlists created from this session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			pubs, err := a.publisher.History(cmd.Context(), a.cfg.SessionID, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(pubs) == 0 {
				fmt.Fprintln(out, "No playlists yet.")
				return nil
			}
			for _, p := range pubs {
				fmt.Fprintf(out, "%s  %s (%d tracks)  %s\n",
					p.CreatedAt.Local().Format("2006-01-02 15:04"), p.Name, p.TrackCount, p.URL)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of playlists to show")
	return cmd
}
