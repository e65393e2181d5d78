// Command defectctl administers a defect register: operator accounts and
// stored images.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/blobstore"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/config"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/database"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/repositories"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/services"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	logger *log.Logger
	db     *gorm.DB
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "defectctl",
		Short:         "Administer the defect register",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Prefix: "defectctl"})
			if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
				a.logger.SetLevel(lvl)
			}
			a.db, err = database.Connect(cfg.DBDriver, cfg.DBDSN, a.logger)
			return err
		},
	}
	root.AddCommand(newUserCmd(a), newBlobsCmd(a))
	return root
}

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage operator accounts"}

	var in models.RegisterInput
	add := &cobra.Command{
		Use:   "add",
		Short: "Register an operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.Password == "" {
				in.Password = os.Getenv("DEFECTCTL_PASSWORD")
			}
			auth := services.NewAuthService(repositories.NewUserRepository(a.db), a.cfg.SessionSecret, a.logger)
			u, err := auth.Register(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", u.ID, u.Username)
			return nil
		},
	}
	add.Flags().StringVar(&in.DisplayName, "name", "", "display name")
	add.Flags().StringVar(&in.Username, "username", "", "login name")
	add.Flags().StringVar(&in.Password, "password", "", "password (or DEFECTCTL_PASSWORD)")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("username")

	cmd.AddCommand(add)
	return cmd
}

func newBlobsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "blobs", Short: "Manage stored images"}

	var grace time.Duration
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Remove images no detection references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if grace <= 0 {
				grace = a.cfg.SweepGrace
			}
			if grace <= a.cfg.PendingTTL {
				return fmt.Errorf("--grace %s must exceed PENDING_TTL %s", grace, a.cfg.PendingTTL)
			}
			blobs, err := blobstore.New(a.cfg.UploadDir)
			if err != nil {
				return err
			}
			defer blobs.Close()

			sweeper := services.NewSweeper(repositories.NewDetectionRepository(a.db), blobs, nil, a.logger)
			n, err := sweeper.Sweep(cmd.Context(), grace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned image(s)\n", n)
			return nil
		},
	}
	sweep.Flags().DurationVar(&grace, "grace", 0, "minimum age of removed images (default BLOB_SWEEP_GRACE)")

	cmd.AddCommand(sweep)
	return cmd
}
