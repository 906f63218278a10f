// Package cli is roomctl, a command line client of the booking API.  Every
// booking command runs through an optimistic store bound to one room, so
// the terminal sees the same rollback and timeout behavior as any other
// front end.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/iliyamo/room-booking/internal/client"
	"github.com/iliyamo/room-booking/internal/config"
	"github.com/iliyamo/room-booking/internal/store"
)

// Settings is the content of the roomctl config file.
type Settings struct {
	API     string        `toml:"api"`
	Token   string        `toml:"token"`
	Timeout time.Duration `toml:"timeout"`
}

// LoadSettings reads path.  A missing file yields the zero Settings.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	if _, err := toml.DecodeFile(path, &s); err != nil && !errors.Is(err, os.ErrNotExist) {
		return s, fmt.Errorf("read %s: %w", path, err)
	}
	return s, nil
}

// SaveSettings writes s to path, readable by the owner only since it holds
// the access token.
func SaveSettings(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func defaultConfigPath() string {
	if p := os.Getenv("ROOMCTL_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".roomctl.toml"
	}
	return filepath.Join(home, ".roomctl.toml")
}

// app carries the resolved settings of one invocation.
type app struct {
	configPath string
	settings   Settings

	// flag values; empty or zero means "not given"
	api     string
	token   string
	timeout time.Duration
}

func (a *app) load() error {
	s, err := LoadSettings(a.configPath)
	if err != nil {
		return err
	}
	if a.api != "" {
		s.API = a.api
	}
	if s.API == "" {
		s.API = "http://localhost:8080"
	}
	if a.token != "" {
		s.Token = a.token
	} else if env := os.Getenv("ROOMCTL_TOKEN"); env != "" {
		s.Token = env
	}
	if a.timeout > 0 {
		s.Timeout = a.timeout
	}
	if s.Timeout <= 0 {
		s.Timeout = config.LoadBookingConfig().ClientTimeout
	}
	a.settings = s
	return nil
}

func (a *app) client() *client.Client {
	c := client.New(a.settings.API, nil)
	c.SetAccessToken(a.settings.Token)
	return c
}

// store returns a store for roomID with the room's bookings already loaded.
func (a *app) store(ctx context.Context, roomID string) (*store.Store, *client.Client, error) {
	c := a.client()
	s := store.New(roomID, c, c, store.Options{Timeout: a.settings.Timeout})
	if _, err := s.List(ctx); err != nil {
		return nil, nil, err
	}
	return s, c, nil
}

// NewRootCommand builds the roomctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "roomctl",
		Short:         "Book rooms from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", defaultConfigPath(), "config file")
	f.StringVar(&a.api, "api", "", "API base URL (default http://localhost:8080)")
	f.StringVar(&a.token, "token", "", "access token (overrides the config file and ROOMCTL_TOKEN)")
	f.DurationVar(&a.timeout, "timeout", 0, "bound on every remote call")

	root.AddCommand(
		loginCmd(a),
		whoamiCmd(a),
		bookingsCmd(a),
		calendarCmd(a),
		bookCmd(a),
		cancelCmd(a),
		creditsCmd(a),
	)
	return root
}

// Execute runs roomctl with os.Args and returns the process exit code.
func Execute() int {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "roomctl:", err)
		return 1
	}
	return 0
}
