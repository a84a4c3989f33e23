package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

func newRecommendCommand(opts *rootOptions) *cobra.Command {
	var (
		activity        string
		includeRegional bool
		playlist        bool
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Fetch recommendations for an activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			if activity != "" {
				act, err := domain.ParseActivity(activity)
				if err != nil || !slices.Contains(domain.Selectable(), act) {
					return fmt.Errorf("unknown activity %q", activity)
				}
				sess.SetActivity(act)
			}
			sess.SetPreferences(domain.Preferences{IncludeRegional: includeRegional})

			tracks, err := a.orch.FetchRecommendations(cmd.Context(), sess)
			if err != nil {
				return a.userError(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s:\n", domain.PlaylistName(sess.Activity()))
			printTracks(out, tracks)

			if playlist {
				return publish(cmd, a, sess)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&activity, "activity", "a", "", "walking, running, sitting, exercising or driving (default walking)")
	cmd.Flags().BoolVar(&includeRegional, "include-regional", true, "include regional (Bollywood) genres")
	cmd.Flags().BoolVar(&playlist, "playlist", false, "save the recommendations as a playlist")
	return cmd
}

func printTracks(w io.Writer, tracks []domain.Track) {
	if len(tracks) == 0 {
		fmt.Fprintln(w, "No recommendations.")
		return
	}
	for i, t := range tracks {
		fmt.Fprintf(w, "%2d. %s - %s\n", i+1, t.Name, t.Artist)
	}
}

func publish(cmd *cobra.Command, a *app, sess *domain.Session) error {
	loc, err := a.publisher.Publish(cmd.Context(), sess)
	if err != nil {
		return a.userError(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Playlist created: %s\n", loc.URL)
	return nil
}
