package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"ms-boxoffice/internal/checkin"
	"ms-boxoffice/internal/database"
	"ms-boxoffice/internal/database/migrations"
	"ms-boxoffice/internal/layout"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/reservations"
	"ms-boxoffice/internal/tokens"
)

func newTable(app *App, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(app.Out)
	t.AppendHeader(header)
	t.SetStyle(table.StyleLight)
	return t
}

func newMigrateCommand(open Opener) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		Long:  `Postgres runs the versioned migrations; MySQL and SQLite get the schema created from the models.`,
		RunE: withApp(open, func(cmd *cobra.Command, app *App, args []string) error {
			cfg := app.Config.Database
			if cfg.Driver != database.DriverPostgres {
				if down {
					return database.DropSchema(cmd.Context(), app.DB)
				}
				if err := database.CreateSchema(cmd.Context(), app.DB); err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "%s schema in place\n", cfg.Driver)
				return nil
			}

			runner := migrations.NewRunner(cfg.DSN, app.Log)
			if err := runner.Initialize(); err != nil {
				return err
			}
			defer runner.Close()

			if down {
				if err := runner.MigrateDown(); err != nil {
					return err
				}
			} else if err := runner.MigrateUp(); err != nil {
				return err
			}
			version, dirty, err := runner.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "schema version %d (dirty=%v)\n", version, dirty)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll every migration back")
	return cmd
}

func newShowsCommand(open Opener) *cobra.Command {
	var drafts bool
	cmd := &cobra.Command{
		Use:   "shows",
		Short: "List shows and their sessions",
		RunE: withApp(open, func(cmd *cobra.Command, app *App, args []string) error {
			list, err := app.Shows.ListShows(cmd.Context(), drafts)
			if err != nil {
				return err
			}
			t := newTable(app, table.Row{"ID", "Title", "Session", "Starts", "Open", "Price", "Bill"})
			for _, show := range list {
				state := "no"
				if show.ReservationsOpen {
					state = "yes"
				}
				bill := ""
				if show.OnBill {
					bill = "★"
				}
				price := "free"
				if show.Paid {
					price = fmt.Sprintf("%.2f", show.Price)
				}
				if len(show.Sessions) == 0 {
					t.AppendRow(table.Row{show.ID, show.Title, "-", "-", state, price, bill})
					continue
				}
				for _, sess := range show.Sessions {
					t.AppendRow(table.Row{show.ID, show.Title, sess.ID, sess.StartsAt.Format("2006-01-02 15:04"), state, price, bill})
				}
			}
			t.Render()
			return nil
		}),
	}
	cmd.Flags().BoolVar(&drafts, "drafts", false, "include draft shows")
	return cmd
}

// newSeatsCommand draws the seat map of one session: '·' free, '■' taken,
// blank for a gap in the row.
func newSeatsCommand(open Opener) *cobra.Command {
	var showID, sessionID string
	cmd := &cobra.Command{
		Use:   "seats",
		Short: "Draw the seat map of a session",
		RunE: withApp(open, func(cmd *cobra.Command, app *App, args []string) error {
			av, err := app.Booking.GetAvailableSeats(cmd.Context(), showID, sessionID)
			if err != nil {
				return err
			}
			taken := make(map[models.Seat]bool, len(av.Occupied))
			for _, s := range av.Occupied {
				taken[s] = true
			}

			busy := color.New(color.FgRed)
			for _, row := range layout.Normalize(av.Layout) {
				var b strings.Builder
				number := 0
				for _, c := range row.Map {
					if c != '1' {
						b.WriteString("  ")
						continue
					}
					number++
					if taken[models.Seat{Row: row.Row, Number: number}] {
						b.WriteString(busy.Sprint("■ "))
					} else {
						b.WriteString("· ")
					}
				}
				fmt.Fprintf(app.Out, "%-3s %s\n", row.Row, b.String())
			}
			fmt.Fprintf(app.Out, "%d/%d seats taken\n", len(av.Occupied), av.Capacity)
			return nil
		}),
	}
	cmd.Flags().StringVar(&showID, "show", "", "show id")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	_ = cmd.MarkFlagRequired("show")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newReservationsCommand(open Opener) *cobra.Command {
	var showID, sessionID, email string
	cmd := &cobra.Command{
		Use:   "reservations",
		Short: "List reservations of a show, a session or a holder",
		RunE: withApp(open, func(cmd *cobra.Command, app *App, args []string) error {
			ctx := cmd.Context()
			var (
				list []reservations.ReservationView
				err  error
			)
			switch {
			case email != "":
				list, err = app.Reservations.ListByHolderEmail(ctx, email)
			case showID != "" && sessionID != "":
				list, err = app.Reservations.ListBySession(ctx, showID, sessionID)
			case showID != "":
				list, err = app.Reservations.ListByShow(ctx, showID)
			default:
				return fmt.Errorf("%w: --show or --email is required", models.ErrInvalidInput)
			}
			if err != nil {
				return err
			}

			t := newTable(app, table.Row{"Seat", "Holder", "Code", "Group", "Status", "Paid", "In", "Created"})
			for _, r := range list {
				status := string(r.PaymentStatus)
				if r.Expired {
					status += " (expired)"
				}
				in := ""
				if r.CheckedIn {
					in = "✓"
				}
				t.AppendRow(table.Row{
					r.Seat().Label(), r.HolderName, r.TicketCode, r.GroupID,
					status, fmt.Sprintf("%.2f", r.PricePaid), in, r.CreatedAt.Format(time.DateTime),
				})
			}
			t.AppendFooter(table.Row{"", "", "", "", "", "", "", fmt.Sprintf("%d rows", len(list))})
			t.Render()
			return nil
		}),
	}
	cmd.Flags().StringVar(&showID, "show", "", "show id")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().StringVar(&email, "email", "", "holder email")
	return cmd
}

func newStatsCommand(open Opener) *cobra.Command {
	var showID string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the dashboard counters",
		RunE: withApp(open, func(cmd *cobra.Command, app *App, args []string) error {
			stats, err := app.Reservations.Stats(cmd.Context(), showID)
			if err != nil {
				return err
			}
			t := newTable(app, table.Row{"Counter", "Value"})
			t.AppendRows([]table.Row{
				{"Shows", stats.Shows},
				{"Reservations", stats.Reservations},
				{"Active", stats.Active},
				{"Paid", stats.Paid},
				{"Pending", stats.Pending},
				{"Expired", stats.Expired},
				{"Exempt", stats.Exempt},
				{"Bypassed", stats.Bypassed},
				{"Checked in", stats.CheckedIn},
				{"Revenue", fmt.Sprintf("%.2f", stats.Revenue)},
			})
			t.Render()
			return nil
		}),
	}
	cmd.Flags().StringVar(&showID, "show", "", "limit to one show")
	return cmd
}

func newTokensCommand(open Opener) *cobra.Command {
	var showID, kind string
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "List invitation tokens of a show",
		RunE: withApp(open, func(cmd *cobra.Command, app *App, args []string) error {
			list, err := app.Tokens.ListTokens(cmd.Context(), showID, models.HolderKind(strings.ToUpper(kind)))
			if err != nil {
				return err
			}
			t := newTable(app, table.Row{"Token", "Kind", "Holder", "Session", "Used", "Max"})
			for _, tok := range list {
				holder := tok.HolderName
				if tok.IsClass() {
					holder = tok.ClassName
				}
				t.AppendRow(table.Row{tok.Token, tok.HolderKind, holder, tok.SessionID, tok.QuotaUsed, tok.QuotaMax})
			}
			t.Render()
			return nil
		}),
	}
	cmd.PersistentFlags().StringVar(&showID, "show", "", "show id")
	cmd.Flags().StringVar(&kind, "kind", "", "CAST_MEMBER or CLASS")
	_ = cmd.MarkPersistentFlagRequired("show")

	var className, session string
	var seats int
	class := &cobra.Command{
		Use:   "class",
		Short: "Issue a class token",
		RunE: withApp(open, func(cmd *cobra.Command, app *App, args []string) error {
			tok, err := app.Tokens.IssueClassToken(cmd.Context(), tokens.ClassTokenRequest{
				ShowID:    showID,
				ClassName: className,
				SeatCount: seats,
				SessionID: session,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s %s (%d seats)\n", tok.Token, tok.ClassName, tok.QuotaMax)
			return nil
		}),
	}
	class.Flags().StringVar(&className, "name", "", "class name")
	class.Flags().IntVar(&seats, "seats", 0, "seat quota, defaults to the configured class size")
	class.Flags().StringVar(&session, "session", "", "restrict to one session")
	_ = class.MarkFlagRequired("name")

	regenerate := &cobra.Command{
		Use:   "regenerate",
		Short: "Replace the cast tokens of a show",
		RunE: withApp(open, func(cmd *cobra.Command, app *App, args []string) error {
			list, err := app.Tokens.RegenerateCastTokens(cmd.Context(), showID, session)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%d cast tokens issued\n", len(list))
			return nil
		}),
	}
	regenerate.Flags().StringVar(&session, "session", "", "restrict to one session")

	cmd.AddCommand(class, regenerate)
	return cmd
}

func newEntryCommand(open Opener) *cobra.Command {
	var override bool
	cmd := &cobra.Command{
		Use:   "entry CODE",
		Short: "Validate a ticket or group code at the door",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(open, func(cmd *cobra.Command, app *App, args []string) error {
			validate := app.CheckIn.ValidateEntry
			if override {
				validate = app.CheckIn.ValidateEntryOverride
			}
			out, err := validate(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			paint := color.New(color.FgRed, color.Bold)
			if out.Kind == checkin.OutcomeSuccess {
				paint = color.New(color.FgGreen, color.Bold)
			}
			fmt.Fprintln(app.Out, paint.Sprint(out.Kind))
			if out.HolderName != "" {
				fmt.Fprintf(app.Out, "holder: %s\n", out.HolderName)
			}
			if out.Seat != nil {
				fmt.Fprintf(app.Out, "seat:   %s\n", out.Seat.Label())
			}
			if out.Group {
				fmt.Fprintf(app.Out, "admitted %d of %d\n", out.ValidatedCount, out.GroupSize)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&override, "override", false, "admit a pending payment")
	return cmd
}
