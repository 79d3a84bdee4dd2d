package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"novelassist/internal/api"
	"novelassist/internal/config"
	"novelassist/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, c := newRootCmd()
	err := root.ExecuteContext(ctx)
	c.teardown()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", api.UserMessage(err))
		stop()
		os.Exit(1)
	}
}

// cli carries what every command needs
type cli struct {
	cfgFile string
	apiURL  string
	asJSON  bool

	cfg *config.Config
	log *zap.Logger
	app *App
	nav *cliNavigator
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	root := &cobra.Command{
		Use:   "novelassist",
		Short: "novelassist - command line client for the novel analysis service",
		Long: `novelassist talks to the novel analysis backend. Use it to:
- sign in and manage your account
- upload novels from a file or URL and follow their processing
- browse novels, chapters, tags and visualizations
- run the admin tools when you have the admin role`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&c.apiURL, "api", "", "backend API URL (overrides NOVEL_API_URL)")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print raw JSON")

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.registerCmd(),
		c.whoamiCmd(),
		c.refreshCmd(),
		c.novelsCmd(),
		c.novelCmd(),
		c.uploadCmd(),
		c.vizCmd(),
		c.accountCmd(),
		c.adminCmd(),
		c.jobsCmd(),
		c.serveCmd(),
	)
	return root, c
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}
	if c.apiURL != "" {
		cfg.APIURL = c.apiURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	c.log, err = logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	// serve only proxies; it needs no session or database
	if cmd.Name() == "serve" {
		return nil
	}

	c.nav = &cliNavigator{out: cmd.ErrOrStderr(), path: commandPath(cmd)}
	c.app = NewApp(cfg, c.log, c.nav)
	return c.app.startup(cmd.Context())
}

func (c *cli) teardown() {
	if c.app != nil {
		c.app.shutdown()
	}
	if c.log != nil {
		_ = c.log.Sync()
	}
}

// cliNavigator maps the client's login redirect onto a hint for the user
type cliNavigator struct {
	out  io.Writer
	path string
}

func (n *cliNavigator) CurrentPath() string {
	return n.path
}

func (n *cliNavigator) Redirect(target string) {
	fmt.Fprintf(n.out, "Session expired. Run 'novelassist login' to sign in again (%s).\n", target)
}

// commandPath turns "novelassist novel show" into "/novel/show"
func commandPath(cmd *cobra.Command) string {
	parts := strings.Fields(cmd.CommandPath())
	if len(parts) > 0 {
		parts = parts[1:]
	}
	return "/" + strings.Join(parts, "/")
}

// print writes v as indented JSON
func (c *cli) print(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// promptIfEmpty reads a value from stdin when the flag was not given
func promptIfEmpty(cmd *cobra.Command, value *string, label string) error {
	if *value != "" {
		return nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)

	var line string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &line); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	*value = strings.TrimSpace(line)
	return nil
}
