package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/evandrarf/neurocase-be/internal/delivery/http/repository"
	"github.com/evandrarf/neurocase-be/internal/delivery/http/usecase"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

type adminEnv struct {
	DB     *gorm.DB
	Config *viper.Viper
	Log    *logrus.Logger
	Out    io.Writer
	Now    func() time.Time
}

func newRootCmd(env *adminEnv) *cobra.Command {
	if env.Now == nil {
		env.Now = time.Now
	}

	root := &cobra.Command{
		Use:           "admin",
		Short:         "Maintenance commands for the neurocase backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newFailedSessionsCmd(env), newPurgeCasesCmd(env))
	return root
}

// failed-sessions prints the reasoning sessions that failed recently
func newFailedSessionsCmd(env *adminEnv) *cobra.Command {
	var hours, limit int

	cmd := &cobra.Command{
		Use:   "failed-sessions",
		Short: "Summarise failed reasoning analyses",
		Long: `Print reasoning session counts by status for the last --hours hours,
followed by up to --limit failed sessions, as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			uc := usecase.NewReasoningUsecase(usecase.ReasoningConfig{
				DB:       env.DB,
				Sessions: repository.NewReasoningRepository(env.DB),
				MCQs:     repository.NewMCQRepository(env.DB),
				Log:      env.Log,
			})

			summary, err := uc.FailedSessions(cmd.Context(), hours, limit)
			if err != nil {
				return fmt.Errorf("failed to load failed sessions: %w", err)
			}

			enc := json.NewEncoder(env.Out)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 24, "look-back window in hours")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of failed sessions to list")
	return cmd
}

func newPurgeCasesCmd(env *adminEnv) *cobra.Command {
	var inactivity, grace time.Duration

	cmd := &cobra.Command{
		Use:   "purge-cases",
		Short: "Soft-delete expired and abandoned case sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("inactivity") && env.Config != nil && env.Config.IsSet("case.inactivity") {
				inactivity = env.Config.GetDuration("case.inactivity")
			}
			if !cmd.Flags().Changed("grace") && env.Config != nil && env.Config.IsSet("case.purge_grace") {
				grace = env.Config.GetDuration("case.purge_grace")
			}

			repo := repository.NewCaseSessionRepository(env.DB)
			purged, err := repo.PurgeExpired(env.DB.WithContext(cmd.Context()), env.Now(), inactivity, grace)
			if err != nil {
				return fmt.Errorf("failed to purge case sessions: %w", err)
			}

			env.Log.WithFields(logrus.Fields{
				"purged":     purged,
				"inactivity": inactivity.String(),
				"grace":      grace.String(),
			}).Info("case sessions purged")
			_, err = fmt.Fprintf(env.Out, "purged %d case sessions\n", purged)
			return err
		},
	}

	cmd.Flags().DurationVar(&inactivity, "inactivity", 7*24*time.Hour, "idle time after which a session expires")
	cmd.Flags().DurationVar(&grace, "grace", 24*time.Hour, "extra time kept after inactivity expires")
	return cmd
}
