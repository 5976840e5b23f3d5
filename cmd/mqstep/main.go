package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/glimte/mqstep"
	"github.com/glimte/mqstep/config"
	"github.com/glimte/mqstep/step"
	"github.com/glimte/mqstep/template"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var (
		configPath string
		logLevel   string
		cfg        *config.Config
		logger     *slog.Logger
	)

	rootCmd := &cobra.Command{
		Use:   "mqstep",
		Short: "Publish build step messages to RabbitMQ",
		Long: `mqstep resolves a message template against build parameters and publishes it
to a RabbitMQ exchange, either as raw text or as a JSON object.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}

			level := cfg.GetLogLevel()
			if logLevel != "" {
				if err := level.UnmarshalText([]byte(logLevel)); err != nil {
					return fmt.Errorf("invalid log level %q: %w", logLevel, err)
				}
			}

			logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
				Level:      level,
				TimeFormat: time.Kitchen,
				NoColor:    noColor,
			}))
			slog.SetDefault(logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default ./mqstep.yaml or ~/.mqstep/mqstep.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	// Template flags shared by publish, render and validate
	var (
		data       string
		dataFile   string
		toJSON     bool
		params     []string
		nullParams []string
	)
	addTemplateFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVarP(&data, "data", "d", "", "Message template")
		cmd.Flags().StringVarP(&dataFile, "data-file", "f", "", "Read the message template from a file ('-' for stdin)")
		cmd.MarkFlagsMutuallyExclusive("data", "data-file")
	}
	addParamFlags := func(cmd *cobra.Command) {
		cmd.Flags().BoolVar(&toJSON, "json", false, "Convert key=value lines to a JSON object")
		cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Build parameter as NAME=VALUE (repeatable)")
		cmd.Flags().StringArrayVar(&nullParams, "null-param", nil, "Build parameter declared without value (repeatable)")
	}

	// Publish command
	var (
		profile        string
		exchange       string
		routingKey     string
		userID         string
		userName       string
		metricsFile    string
		mandatory      bool
		connectTimeout time.Duration
		confirmTimeout time.Duration
	)
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Resolve the template and publish it",
		Long: `Resolve the template against the build parameters and the environment, then
publish it to the exchange of the given broker profile. The command fails when
the broker does not confirm the message.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			tmpl, err := readTemplate(data, dataFile)
			if err != nil {
				return err
			}
			vars, err := parseParams(params, nullParams)
			if err != nil {
				return err
			}

			metrics := step.NewMetrics()
			dial := mqstep.NewDialer(
				mqstep.WithLogger(logger),
				mqstep.WithConnectTimeout(connectTimeout),
				mqstep.WithConfirmTimeout(confirmTimeout),
				mqstep.WithMandatory(mandatory),
			)
			runner := step.NewRunner(cfg, dial,
				step.WithConsole(os.Stdout),
				step.WithLogger(logger),
				step.WithMetrics(metrics),
			)

			err = runner.Perform(ctx, step.Step{
				Profile:    profile,
				Exchange:   exchange,
				RoutingKey: routingKey,
				Data:       tmpl,
				ToJSON:     toJSON,
			}, step.Build{
				Variables: vars,
				UserID:    userID,
				UserName:  userName,
				Env:       step.EnvFromList(os.Environ()),
			})

			if metricsFile != "" {
				if werr := metrics.WriteTextfile(metricsFile); werr != nil {
					logger.Warn("failed to write metrics", "path", metricsFile, "error", werr)
				}
			}

			if err != nil {
				return err
			}
			successf("Message published to %s", bold.Sprint(exchange))
			return nil
		},
	}
	addTemplateFlags(publishCmd)
	addParamFlags(publishCmd)
	publishCmd.Flags().StringVarP(&profile, "profile", "r", "", "Broker profile name")
	publishCmd.Flags().StringVarP(&exchange, "exchange", "e", "", "Exchange name")
	publishCmd.Flags().StringVarP(&routingKey, "routing-key", "k", "", "Routing key")
	publishCmd.Flags().StringVar(&userID, "user-id", os.Getenv("BUILD_USER_ID"), "User who started the build")
	publishCmd.Flags().StringVar(&userName, "user-name", os.Getenv("BUILD_USER_NAME"), "Name of the user who started the build")
	publishCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	publishCmd.Flags().BoolVar(&mandatory, "mandatory", false, "Fail when no queue is bound to the routing key")
	publishCmd.Flags().DurationVar(&connectTimeout, "connect-timeout", 30*time.Second, "Broker connection timeout")
	publishCmd.Flags().DurationVar(&confirmTimeout, "confirm-timeout", 5*time.Second, "Publisher confirmation timeout")
	_ = publishCmd.MarkFlagRequired("profile")
	_ = publishCmd.MarkFlagRequired("exchange")

	// Render command
	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Resolve the template and print the message",
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := readTemplate(data, dataFile)
			if err != nil {
				return err
			}
			vars, err := parseParams(params, nullParams)
			if err != nil {
				return err
			}

			msg, err := step.Step{Data: tmpl, ToJSON: toJSON}.Render(vars, step.EnvFromList(os.Environ()))
			if err != nil {
				printFormatError(err)
				return err
			}
			fmt.Fprintln(stdout, string(msg.Body))
			return nil
		},
	}
	addTemplateFlags(renderCmd)
	addParamFlags(renderCmd)

	// Validate command
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that the template is a valid list of key=value lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := readTemplate(data, dataFile)
			if err != nil {
				return err
			}
			if err := template.Validate(tmpl); err != nil {
				return err
			}
			successf("Template is valid")
			return nil
		},
	}
	addTemplateFlags(validateCmd)

	// Test connection command
	testConnectionCmd := &cobra.Command{
		Use:   "test-connection <profile>",
		Short: "Check that a broker profile accepts connections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			p, err := cfg.Profile(args[0])
			if err != nil {
				return err
			}

			client, err := mqstep.NewClient(*p, mqstep.WithLogger(logger))
			if err != nil {
				return err
			}
			defer client.Close()

			result := client.Check(ctx)
			printCheckResult(result)
			if !result.Healthy() {
				return fmt.Errorf("%s: %s", result.Message, result.Error)
			}
			return nil
		},
	}

	// Profiles command
	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage broker profiles",
	}

	profilesListCmd := &cobra.Command{
		Use:   "list",
		Short: "List broker profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			printProfiles(cfg.Profiles)
			return nil
		},
	}

	var (
		newProfile config.Profile
		port       string
	)
	profilesAddCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace a broker profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			newProfile.Name = args[0]
			if port != "" {
				n, err := parsePort(port)
				if err != nil {
					return err
				}
				newProfile.Port = n
			}

			if err := cfg.Upsert(newProfile); err != nil {
				return err
			}

			path := configPath
			if path == "" {
				var err error
				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}

			successf("Profile %s saved to %s", bold.Sprint(newProfile.Name), path)
			return nil
		},
	}
	profilesAddCmd.Flags().StringVar(&newProfile.Host, "host", "", "Broker host")
	profilesAddCmd.Flags().StringVar(&port, "port", "", "Broker port (default 5672, 5671 when secure)")
	profilesAddCmd.Flags().StringVar(&newProfile.Username, "username", "", "User name")
	profilesAddCmd.Flags().StringVar(&newProfile.Password, "password", "", "Password")
	profilesAddCmd.Flags().BoolVar(&newProfile.Secure, "secure", false, "Connect with TLS")
	profilesAddCmd.Flags().StringVar(&newProfile.VirtualHost, "vhost", "", "Virtual host (default /)")
	_ = profilesAddCmd.MarkFlagRequired("host")

	profilesCmd.AddCommand(profilesListCmd, profilesAddCmd)

	rootCmd.AddCommand(publishCmd, renderCmd, validateCmd, testConnectionCmd, profilesCmd)

	if err := rootCmd.Execute(); err != nil {
		errorf("%v", err)
		os.Exit(1)
	}
}

// signalContext cancels on interrupt
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
