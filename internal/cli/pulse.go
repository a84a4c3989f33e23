package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cadence/internal/core/services"
)

func newPulseCommand(opts *rootOptions) *cobra.Command {
	var (
		bpm         float64
		samplesFile string
		playlist    bool
	)

	cmd := &cobra.Command{
		Use:   "pulse",
		Short: "Recommend music for your current heart rate",
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

			src := pickSensor(samplesFile, bpm)
			if src == nil {
				return fmt.Errorf("--bpm must be positive")
			}
			monitor := services.NewHeartRateMonitor(src, a.orch, a.log)
			if _, err := monitor.RequestSensorAuthorization(cmd.Context()); err != nil {
				return a.userError(err)
			}
			reading, err := monitor.FetchHeartRate(cmd.Context(), sess)
			if err != nil {
				return a.userError(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Heart rate %.0f bpm: %s\n", reading.Sample.BPM, reading.Activity)
			printTracks(out, reading.Tracks)
			if playlist {
				return publish(cmd, a, sess)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&bpm, "bpm", 0, "heart rate in beats per minute")
	cmd.Flags().StringVar(&samplesFile, "samples", "", "JSON file of recorded samples; the latest is used")
	cmd.Flags().BoolVar(&playlist, "playlist", false, "save the recommendations as a playlist")
	cmd.MarkFlagsOneRequired("bpm", "samples")
	cmd.MarkFlagsMutuallyExclusive("bpm", "samples")
	return cmd
}
