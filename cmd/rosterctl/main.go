// Command rosterctl is a terminal client for the live patient roster.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"rhealth-backend/domain/patient"
	"rhealth-backend/pkg/client"
	"rhealth-backend/pkg/protocol"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	url     string
	token   string
	timeout time.Duration
	verbose bool
}

func (a *app) options() client.Options {
	return client.Options{URL: a.url, Token: a.token}
}

func (a *app) logger() *zap.Logger {
	if !a.verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// once runs fn on a short-lived session bounded by the command timeout
func (a *app) once(cmd *cobra.Command, fn func(context.Context, *client.Session) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()
	return client.Once(ctx, a.options(), a.logger(), func(s *client.Session) error {
		return fn(ctx, s)
	})
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:          "rosterctl",
		Short:        "Watch and edit the live patient roster",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&a.url, "url", envOr("ROSTER_URL", "ws://localhost:5000/ws"), "roster WebSocket endpoint")
	rootCmd.PersistentFlags().StringVar(&a.token, "token", os.Getenv("ROSTER_TOKEN"), "bearer token")
	rootCmd.PersistentFlags().DurationVar(&a.timeout, "timeout", 10*time.Second, "timeout for one-shot commands")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log connection activity to stderr")

	rootCmd.AddCommand(
		newListCmd(a),
		newWatchCmd(a),
		newAddCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newSelectCmd(a),
	)
	return rootCmd
}

type viewFlags struct {
	filter string
	page   int
}

func (f *viewFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.filter, "filter", "", "case-insensitive search across all columns")
	cmd.Flags().IntVar(&f.page, "page", 0, "print only this page of 10 rows")
}

func (f *viewFlags) render(w io.Writer, list []patient.Patient) {
	list = client.Filter(list, f.filter)
	if f.page > 0 {
		rows, total := client.Page(list, f.page, client.DefaultPageSize)
		_, _ = fmt.Fprintf(w, "page %d of %d\n", f.page, total)
		list = rows
	}
	_, _ = fmt.Fprintln(w, client.MarshalIndent(list))
}

func newListCmd(a *app) *cobra.Command {
	var view viewFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the current roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.once(cmd, func(_ context.Context, s *client.Session) error {
				view.render(cmd.OutOrStdout(), s.Roster.View())
				return nil
			})
		},
	}
	view.bind(cmd)
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var view viewFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream roster and selection changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			roster := client.NewRoster()
			return client.Watch(ctx, a.options(), roster, a.logger(), func(u client.Update) {
				switch u.Type {
				case protocol.TypePatients:
					view.render(out, roster.View())
				case protocol.TypeSelectedPatient:
					if p, ok := roster.Selected(); ok {
						_, _ = fmt.Fprintf(out, "selected: %d %s\n", p.ID, p.Name)
					} else if id, ok := roster.SelectedID(); ok {
						_, _ = fmt.Fprintf(out, "selected: %d (not in roster)\n", id)
					}
				case protocol.TypeError:
					if u.Err != nil {
						_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "error: %s: %s\n", u.Err.Code, u.Err.Message)
					}
				}
			})
		},
	}
	view.bind(cmd)
	return cmd
}

type patientFlags struct {
	name             string
	age              int
	gender           string
	heartRate        float64
	oxygenSaturation float64
	temperature      float64
}

func (f *patientFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "patient name")
	cmd.Flags().IntVar(&f.age, "age", 0, "age in years")
	cmd.Flags().StringVar(&f.gender, "gender", "", "gender")
	cmd.Flags().Float64Var(&f.heartRate, "heart-rate", 0, "heart rate (bpm)")
	cmd.Flags().Float64Var(&f.oxygenSaturation, "oxygen-saturation", 0, "oxygen saturation (%)")
	cmd.Flags().Float64Var(&f.temperature, "temperature", 0, "temperature (°C)")
}

func (f *patientFlags) fields(cmd *cobra.Command) patient.Fields {
	changed := cmd.Flags().Changed
	out := patient.Fields{Name: f.name, Gender: f.gender}
	if changed("age") {
		out.Age = patient.Int(f.age)
	}
	if changed("heart-rate") {
		out.HeartRate = patient.Float(f.heartRate)
	}
	if changed("oxygen-saturation") {
		out.OxygenSaturation = patient.Float(f.oxygenSaturation)
	}
	if changed("temperature") {
		out.Temperature = patient.Float(f.temperature)
	}
	return out
}

func (f *patientFlags) patch(cmd *cobra.Command) patient.Patch {
	changed := cmd.Flags().Changed
	var p patient.Patch
	if changed("name") {
		p.Name = patient.String(f.name)
	}
	if changed("age") {
		p.Age = patient.Int(f.age)
	}
	if changed("gender") {
		p.Gender = patient.String(f.gender)
	}
	p.HeartRate = vitalPatch(cmd, "heart-rate", f.heartRate)
	p.OxygenSaturation = vitalPatch(cmd, "oxygen-saturation", f.oxygenSaturation)
	p.Temperature = vitalPatch(cmd, "temperature", f.temperature)
	return p
}

func vitalPatch(cmd *cobra.Command, flag string, v float64) patient.OptionalFloat {
	if cleared, _ := cmd.Flags().GetBool("clear-" + flag); cleared {
		return patient.Clear()
	}
	if cmd.Flags().Changed(flag) {
		return patient.SetTo(v)
	}
	return patient.Keep()
}

func newAddCmd(a *app) *cobra.Command {
	var flags patientFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.once(cmd, func(ctx context.Context, s *client.Session) error {
				reqID, err := s.AddPatient(flags.fields(cmd))
				if err != nil {
					return err
				}
				answer, err := s.Await(ctx, reqID, protocol.TypePatients)
				if err != nil {
					return err
				}
				// The confirming push is the roster right after the insert,
				// so the new patient holds the highest id in it.
				if n := len(answer.Patients); n > 0 {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added patient %d\n", answer.Patients[n-1].ID)
				}
				return nil
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var flags patientFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a patient; vitals can be cleared with --clear-<vital>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.once(cmd, func(ctx context.Context, s *client.Session) error {
				reqID, err := s.UpdatePatient(id, flags.patch(cmd))
				if err != nil {
					return err
				}
				if _, err := s.Await(ctx, reqID, protocol.TypePatients); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "updated patient %d\n", id)
				return nil
			})
		},
	}
	flags.bind(cmd)
	cmd.Flags().Bool("clear-heart-rate", false, "clear the heart rate")
	cmd.Flags().Bool("clear-oxygen-saturation", false, "clear the oxygen saturation")
	cmd.Flags().Bool("clear-temperature", false, "clear the temperature")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.once(cmd, func(ctx context.Context, s *client.Session) error {
				reqID, err := s.DeletePatient(id)
				if err != nil {
					return err
				}
				if _, err := s.Await(ctx, reqID, protocol.TypePatients); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted patient %d\n", id)
				return nil
			})
		},
	}
}

func newSelectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "select <id>",
		Short: "Make a patient the shared selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.once(cmd, func(ctx context.Context, s *client.Session) error {
				reqID, err := s.SelectPatient(id)
				if err != nil {
					return err
				}
				if _, err := s.Await(ctx, reqID, protocol.TypeSelectedPatient); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "selected patient %d\n", id)
				return nil
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid patient id %q", s)
	}
	return id, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
