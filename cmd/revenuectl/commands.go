package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"HotelRevenue/internal/di"
	"HotelRevenue/internal/domain/models"
	"HotelRevenue/pkg/config"
	"HotelRevenue/pkg/server"
	"HotelRevenue/pkg/util"
)

var configPath string

// withApp builds the application, runs fn and releases every resource.
func withApp(fn func(ctx context.Context, app *server.App) (models.Result, error)) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return err
	}
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	res, err := fn(ctx, app)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s", res.Message)
	}
	return nil
}

func parseDate(flag, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, ok := util.ParseDate(v)
	if !ok {
		return nil, fmt.Errorf("--%s must be YYYY-MM-DD, got %q", flag, v)
	}
	return &t, nil
}

func roomFilter(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

// rangeFlags is the start/end/room filter shared by several commands.
type rangeFlags struct {
	start, end string
	room       int64
}

func (f *rangeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "last day (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&f.room, "room-type", 0, "room type id (0 = all)")
}

// bounds resolves the range, defaulting to the trailing year.
func (f *rangeFlags) bounds() (time.Time, time.Time, error) {
	end, err := parseDate("end", f.end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := parseDate("start", f.start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to := util.Day(time.Now())
	if end != nil {
		to = *end
	}
	from := util.AddDays(to, -365)
	if start != nil {
		from = *start
	}
	return from, to, nil
}

func runCmd() *cobra.Command {
	var (
		rf      rangeFlags
		horizon int
		export  bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run analysis, forecasting, pricing and optionally export",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDate("start", rf.start)
			if err != nil {
				return err
			}
			end, err := parseDate("end", rf.end)
			if err != nil {
				return err
			}
			p := models.RunParams{Horizon: horizon, RoomTypeID: roomFilter(rf.room), Export: export}
			if start != nil {
				p.Start = *start
			}
			if end != nil {
				p.End = *end
			}
			return withApp(func(ctx context.Context, app *server.App) (models.Result, error) {
				return app.UseCase().RunFull(ctx, p), nil
			})
		},
	}
	rf.bind(cmd)
	cmd.Flags().IntVar(&horizon, "horizon", 0, "forecast days (0 = configured)")
	cmd.Flags().BoolVar(&export, "export", false, "export approved tariffs after pricing")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compute KPIs, patterns and the year-over-year comparison",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := rf.bounds()
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, app *server.App) (models.Result, error) {
				return app.UseCase().AnalyzeKPIs(ctx, from, to, roomFilter(rf.room)), nil
			})
		},
	}
	rf.bind(cmd)
	return cmd
}

func forecastCmd() *cobra.Command {
	var (
		rf      rangeFlags
		horizon int
	)
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Fit history and store occupancy forecasts",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := rf.bounds()
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, app *server.App) (models.Result, error) {
				return app.UseCase().GenerateForecasts(ctx, from, to, horizon, roomFilter(rf.room)), nil
			})
		},
	}
	rf.bind(cmd)
	cmd.Flags().IntVar(&horizon, "horizon", 0, "forecast days (0 = configured)")
	return cmd
}

func priceCmd() *cobra.Command {
	var (
		horizon int
		room    int64
	)
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Apply pricing rules to stored forecasts from today",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *server.App) (models.Result, error) {
				return app.UseCase().ApplyPricingRules(ctx, horizon, roomFilter(room)), nil
			})
		},
	}
	cmd.Flags().IntVar(&horizon, "horizon", 0, "days ahead (0 = configured)")
	cmd.Flags().Int64Var(&room, "room-type", 0, "room type id (0 = all)")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		rf      rangeFlags
		channel string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write approved tariffs to a workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDate("start", rf.start)
			if err != nil {
				return err
			}
			end, err := parseDate("end", rf.end)
			if err != nil {
				return err
			}
			var ch *string
			if channel != "" {
				ch = &channel
			}
			return withApp(func(ctx context.Context, app *server.App) (models.Result, error) {
				return app.UseCase().ExportTariffs(ctx, start, end, roomFilter(rf.room), ch), nil
			})
		},
	}
	rf.bind(cmd)
	cmd.Flags().StringVar(&channel, "channel", "", "channel name")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Store the configured room types",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *server.App) (models.Result, error) {
				if err := app.Seed(ctx); err != nil {
					return models.Result{}, err
				}
				return models.OK("room types seeded", nil), nil
			})
		},
	}
}

func reloadRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload-rules",
		Short: "Re-read active pricing rules, creating the defaults when none exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *server.App) (models.Result, error) {
				return app.UseCase().ReloadRules(ctx), nil
			})
		},
	}
}
