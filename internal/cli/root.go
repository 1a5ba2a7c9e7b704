package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"ms-boxoffice/internal/booking"
	"ms-boxoffice/internal/checkin"
	"ms-boxoffice/internal/config"
	"ms-boxoffice/internal/database"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/reservations"
	"ms-boxoffice/internal/shows"
	"ms-boxoffice/internal/tokens"
)

// App is what every staff command works against: the services over one
// database handle, with no event sinks attached.
type App struct {
	Config       *config.Config
	Log          *logger.Logger
	DB           *bun.DB
	Shows        *shows.ShowService
	Tokens       *tokens.TokenService
	Reservations *reservations.ReservationService
	Booking      *booking.BookingService
	CheckIn      *checkin.CheckInService
	Out          io.Writer

	closeDB bool
}

func NewApp(cfg *config.Config, log *logger.Logger, bunDB *bun.DB) *App {
	showService := shows.NewShowService(bunDB, log)

	tokenService := tokens.NewTokenService(bunDB, showService, log)
	tokenService.DefaultCastQuota = cfg.Booking.DefaultCastQuota
	tokenService.DefaultClassSeats = cfg.Booking.ClassSeats

	reservationService := reservations.NewReservationService(bunDB, nil, log)
	reservationService.HoldWindow = cfg.Booking.HoldWindow

	bookingService := booking.NewBookingService(bunDB, showService, nil, nil, log)
	bookingService.HoldWindow = cfg.Booking.HoldWindow
	bookingService.CounterFee = cfg.Booking.CounterFee

	return &App{
		Config:       cfg,
		Log:          log,
		DB:           bunDB,
		Shows:        showService,
		Tokens:       tokenService,
		Reservations: reservationService,
		Booking:      bookingService,
		CheckIn:      checkin.NewCheckInService(bunDB, nil, log),
		Out:          os.Stdout,
	}
}

func (a *App) Close() {
	if a.closeDB {
		a.DB.Close()
	}
}

// Opener builds the App a command runs against.
type Opener func(ctx context.Context) (*App, error)

func openFromConfig(ctx context.Context) (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg.Log.Service+"-cli", cfg.Log.Dir, "WARN")

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	app := NewApp(cfg, log, bunDB)
	app.closeDB = true
	return app, nil
}

type runFunc func(cmd *cobra.Command, app *App, args []string) error

func withApp(open Opener, run runFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		return run(cmd, app, args)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of the box office CLI",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "boxoffice CLI v0.3")
		},
	}
}

func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "boxoffice",
		Short:         "Box office staff CLI",
		Long:          `Manage shows, reservations, invitation tokens and door entry from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newVersionCommand(),
		newMigrateCommand(open),
		newShowsCommand(open),
		newSeatsCommand(open),
		newReservationsCommand(open),
		newStatsCommand(open),
		newTokensCommand(open),
		newEntryCommand(open),
	)
	return root
}

func Execute() {
	if err := NewRootCommand(openFromConfig).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
