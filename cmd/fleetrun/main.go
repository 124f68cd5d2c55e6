package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fleetrun/internal/config"
	"fleetrun/internal/logging"
	"fleetrun/internal/plan"
	"fleetrun/internal/progress"
	"fleetrun/internal/render"
	"fleetrun/internal/scheduler"
	"fleetrun/internal/session"
	"fleetrun/internal/target"
	"fleetrun/internal/transport"
)

var (
	// Build-time variables (set via -ldflags)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"

	cfg *config.Config

	hosts       string
	hostFile    string
	planFile    string
	commandFile string
	askPassword bool
	askSecond   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleetrun [flags] -- <command>",
	Short: "Run commands across a fleet of SSH hosts and consolidate the results",
	Long: `fleetrun connects to many hosts in parallel, runs the same commands on
each, groups the hosts whose output matched exactly, and renders one
consolidated report instead of hundreds of identical copies.

Examples:
  # One command on a few hosts
  fleetrun --hosts web01,web02,web03 -- uptime

  # A whole subnet, paced to 2 connections per second
  fleetrun --hosts 10.20.30.0/24 --delay 500ms -- "df -h /"

  # Through a jumpbox, results appended to a file
  fleetrun --hostfile prod.txt --jumpbox bastion01 --output-file audit.txt -- "rpm -qa | sort"

  # Different commands per host group
  fleetrun --plan rollout.yml`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && planFile == "" && commandFile == "" {
			return fmt.Errorf("command is required after '--' (or use --plan / --command-file)")
		}
		return nil
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		manager := config.NewManager()
		if err := manager.BindFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("failed to bind flags: %w", err)
		}

		loaded, err := manager.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fleetrun %s\n", version)
			fmt.Printf("Commit: %s\n", commit)
			fmt.Printf("Built: %s\n", buildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.Flags()
	flags.StringVar(&hosts, "hosts", "", "Comma-separated hostnames, addresses or address/prefix blocks")
	flags.StringVar(&hostFile, "hostfile", "", "Path to file of hostnames (one per line)")
	flags.StringVar(&planFile, "plan", "", "YAML plan file mapping hosts to command lists")
	flags.StringVar(&commandFile, "command-file", "", "Path to file of commands to run on every host (one per line)")
	flags.BoolVar(&askPassword, "ask-password", false, "Prompt for the login password")
	flags.BoolVar(&askSecond, "ask-second-password", false, "Prompt for a second password for in-command prompts")

	flags.String("username", "", "Login username (defaults to the current user)")
	flags.String("keyfile", "", "Private key file")
	flags.Int("port", 22, "Target SSH port")
	flags.String("jumpbox", "", "Connect to every target through this host")
	flags.String("jumpbox-username", "", "Username on the jumpbox (defaults to --username)")
	flags.Int("jumpbox-port", 22, "Jumpbox SSH port")
	flags.Duration("connect-timeout", 20*time.Second, "Per-connection timeout")
	flags.Duration("cmd-timeout", 20*time.Second, "Per-command response timeout")
	flags.Int("workers", 100, "Maximum concurrent connections")
	flags.Duration("delay", 0, "Pause between consecutive connections")
	flags.Int("style", 0, "Table border style (0-3)")
	flags.Bool("csv", false, "Write CSV instead of a table")
	flags.String("csv-separator", ",", "CSV field separator")
	flags.Bool("stacked", false, "Write stacked output instead of a table")
	flags.Int("width", 0, "Output width (0 detects the terminal)")
	flags.String("output-file", "", "Append results to this file instead of stdout")
	flags.StringSlice("extra-prompts", nil, "Additional password-prompt patterns to answer")
	flags.Bool("verify-login", false, "Verify the first login before fanning out")
	flags.Bool("progress", false, "Show a progress bar")
	flags.Bool("debug", false, "Emit per-event debug lines")
	flags.Bool("quiet", false, "Suppress non-error log output")
	flags.String("log-format", "text", "Log format (json, text)")
}

func run(args []string) error {
	logger := logging.NewLogger(logging.Config{
		Debug:  cfg.Debug,
		Format: logging.LogFormat(cfg.LogFormat),
		Quiet:  cfg.Quiet,
	})

	if cfg.Username == "" {
		if current, err := user.Current(); err == nil {
			cfg.Username = current.Username
		}
	}

	if err := resolvePasswords(); err != nil {
		return err
	}

	targets, err := buildTargets(args)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("no targets: use --hosts, --hostfile or --plan")
	}

	sink, err := buildSink()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := progress.NewTracker(len(targets), os.Stderr, cfg.Progress)

	sched := scheduler.New(scheduler.Config{
		Workers:          cfg.Workers,
		Delay:            cfg.Delay,
		VerifyFirstLogin: cfg.VerifyFirstLogin,
		Session:          sessionTemplate(),
	}, transport.NewSSHTransport(logger), logger)
	sched.OnHostDone = func(name string, failed bool) {
		tracker.Update(failed)
	}

	results := sched.Run(ctx, targets)
	tracker.Finish()

	return sink.Write(render.Render(results, renderOptions()))
}

// buildTargets assembles the target list. A plan file carries its own
// commands; otherwise every host gets the shared command list.
func buildTargets(args []string) ([]scheduler.Target, error) {
	if planFile != "" {
		p, err := plan.Load(planFile)
		if err != nil {
			return nil, err
		}
		var targets []scheduler.Target
		for _, entry := range p.Entries() {
			targets = append(targets, scheduler.Target{Name: entry.Host, Commands: entry.Commands})
		}
		return targets, nil
	}

	commands, err := buildCommands(args)
	if err != nil {
		return nil, err
	}

	var entries []string
	if hosts != "" {
		entries = append(entries, target.FromArgs([]string{hosts})...)
	}
	if hostFile != "" {
		fromFile, err := target.FromFile(hostFile)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fromFile...)
	}

	var targets []scheduler.Target
	for _, name := range target.Expand(entries) {
		targets = append(targets, scheduler.Target{Name: name, Commands: commands})
	}
	return targets, nil
}

// buildCommands returns the shared command list: the '--' arguments joined as
// one command, preceded by any commands from --command-file.
func buildCommands(args []string) ([]string, error) {
	var commands []string
	if commandFile != "" {
		fromFile, err := target.FromFile(commandFile)
		if err != nil {
			return nil, err
		}
		commands = fromFile
	}
	if len(args) > 0 {
		commands = append(commands, strings.Join(args, " "))
	}
	if len(commands) == 0 {
		return nil, fmt.Errorf("no commands to run")
	}
	return commands, nil
}

// resolvePasswords prompts for any passwords the flags requested. The jumpbox
// reuses the login password unless one was set explicitly.
func resolvePasswords() error {
	if askPassword && cfg.Password == "" {
		password, err := promptSecret(fmt.Sprintf("%s's password: ", cfg.Username))
		if err != nil {
			return err
		}
		cfg.Password = password
	}

	if askSecond && cfg.SecondPassword == "" {
		second, err := promptSecret("Second password: ")
		if err != nil {
			return err
		}
		cfg.SecondPassword = second
	}

	if cfg.HasJump() {
		if cfg.JumpUser == "" {
			cfg.JumpUser = cfg.Username
		}
		if cfg.JumpPassword == "" {
			cfg.JumpPassword = cfg.Password
		}
	}
	return nil
}

// promptSecret reads a line with terminal echo disabled.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(secret), nil
}

// buildSink routes output to stdout or the configured file. Appending to an
// existing file needs confirmation so a stale report is never extended by
// accident.
func buildSink() (*render.Sink, error) {
	if cfg.OutputFile == "" {
		return render.NewSink(os.Stdout), nil
	}

	if _, err := os.Stat(cfg.OutputFile); err == nil {
		fmt.Fprintf(os.Stderr, "%s exists, append to it? [y/N] ", cfg.OutputFile)
		reply, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil || !strings.HasPrefix(strings.ToLower(strings.TrimSpace(reply)), "y") {
			return nil, fmt.Errorf("refusing to append to %s", cfg.OutputFile)
		}
	}
	return render.NewFileSink(cfg.OutputFile), nil
}

func sessionTemplate() session.Config {
	sessCfg := session.Config{
		Port:           cfg.Port,
		User:           cfg.Username,
		Password:       cfg.Password,
		SecondPassword: cfg.SecondPassword,
		KeyFile:        cfg.KeyFile,
		ConnectTimeout: cfg.ConnectTimeout,
		CmdTimeout:     cfg.CmdTimeout,
		PromptPatterns: cfg.ExtraPrompts,
	}
	if cfg.HasJump() {
		sessCfg.Jump = &session.JumpConfig{
			Host:     cfg.JumpHost,
			Port:     cfg.JumpPort,
			User:     cfg.JumpUser,
			Password: cfg.JumpPassword,
		}
	}
	return sessCfg
}

func renderOptions() render.Options {
	opts := render.Options{
		Style:    cfg.Style,
		Width:    cfg.Width,
		JumpHost: cfg.JumpHost,
		CSVChar:  cfg.CSVSeparator,
	}
	switch {
	case cfg.CSV:
		opts.Mode = render.ModeCSV
	case cfg.Stacked:
		opts.Mode = render.ModeStacked
	}

	if opts.Width <= 0 {
		if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
			opts.Width = width
		}
	}
	return opts
}
