package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/room-booking/internal/apperr"
	"github.com/iliyamo/room-booking/internal/model"
)

func loginCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login EMAIL",
		Short: "Sign in and keep the access token in the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("ROOMCTL_PASSWORD")
			}
			if password == "" {
				return apperr.Validation("password required: --password or ROOMCTL_PASSWORD")
			}
			c := a.client()
			who, err := c.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			saved := a.settings
			saved.Token = c.AccessToken()
			if err := SaveSettings(a.configPath, saved); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", who.ID, roleOf(who))
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			who, err := a.client().CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			if who == nil {
				return apperr.ErrAuth
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", who.ID, roleOf(*who))
			return nil
		},
	}
}

func bookingsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bookings ROOM",
		Short: "List a room's bookings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := a.store(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTART\tEND\tTYPE\tSTATUS\tUSER")
			for _, b := range s.Bookings() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", b.ID, b.StartDate, b.EndDate, b.Type, b.Status, b.UserID)
			}
			return w.Flush()
		},
	}
}

func calendarCmd(a *app) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "calendar ROOM",
		Short: "Show the availability of every day of a month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := time.Now().UTC()
			if month != "" {
				t, err := time.Parse("2006-01", month)
				if err != nil {
					return apperr.Validation("month must be YYYY-MM")
				}
				m = t
			}
			s, _, err := a.store(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, d := range s.Month(m) {
				fmt.Fprintf(w, "%s\t%s\n", d.Date, d.Status)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default current)")
	return cmd
}

func bookCmd(a *app) *cobra.Command {
	var (
		kind    string
		userID  string
		pending bool
	)
	cmd := &cobra.Command{
		Use:   "book ROOM START [END]",
		Short: "Book a room for an inclusive date range",
		Long: `Book a room from START to END (YYYY-MM-DD, inclusive).  END defaults
to START.  --type is daily (a third party rental) or monthly (the room's
tenant); --user books on behalf of another user and needs the owner role.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseType(kind)
			if err != nil {
				return err
			}
			end := args[1]
			if len(args) == 3 {
				end = args[2]
			}
			s, c, err := a.store(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if userID == "" {
				who, err := c.CurrentUser(cmd.Context())
				if err != nil {
					return err
				}
				if who == nil {
					return apperr.ErrAuth
				}
				userID = who.ID
			}
			status := model.StatusConfirmed
			if pending {
				status = model.StatusPending
			}
			id, err := s.Create(cmd.Context(), model.BookingDraft{
				RoomID:    args[0],
				UserID:    userID,
				StartDate: args[1],
				EndDate:   end,
				Type:      t,
				Status:    status,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "type", "t", "daily", "daily or monthly")
	cmd.Flags().StringVar(&userID, "user", "", "book on behalf of this user id")
	cmd.Flags().BoolVar(&pending, "pending", false, "create the booking as pending")
	return cmd
}

func cancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ROOM BOOKING_ID",
		Short: "Cancel a booking",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := a.store(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			b, err := s.Cancel(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", b.ID, b.Status)
			return nil
		},
	}
}

func creditsCmd(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "credits ROOM",
		Short: "Show the credit position on a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := a.store(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			sum := s.Credits(userID)
			fmt.Fprintf(cmd.OutOrStdout(), "earned %d  used %d  available %d\n", sum.Earned, sum.Used, sum.Available)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "restrict to one user id")
	return cmd
}

func parseType(s string) (model.BookingType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", string(model.TypeDailyRental):
		return model.TypeDailyRental, nil
	case "monthly", string(model.TypeMonthlyTenant):
		return model.TypeMonthlyTenant, nil
	}
	return "", apperr.Validation("unknown booking type %q (daily or monthly)", s)
}

func roleOf(id model.Identity) string {
	if id.Role == "" {
		return "guest"
	}
	return string(id.Role)
}
