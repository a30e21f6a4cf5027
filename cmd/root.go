package cmd

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/josephlewis42/tinysh/commands"
	"github.com/josephlewis42/tinysh/core/config"
	"github.com/josephlewis42/tinysh/core/logger"
	"github.com/josephlewis42/tinysh/core/vos"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	command string

	// exitStatus is the status the process exits with once the command is
	// done.
	exitStatus int
)

// loadConfig loads the configuration from --config, or the current
// directory if it's unset.
func loadConfig() (*config.Configuration, error) {
	path := cfgPath
	if path == "" {
		path = "."
	}

	configuration, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// shellConfig is like loadConfig but falls back to the built-in defaults
// when --config isn't set.
func shellConfig() (*config.Configuration, error) {
	if cfgPath == "" {
		return config.Default("."), nil
	}
	return loadConfig()
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tinysh",
	Short: "A tiny interactive shell",
	Long: `A small command interpreter with pipelines, output redirection, history
and Tab completion. It can also be served to remote users over SSH.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := shellConfig()
		if err != nil {
			return err
		}

		dir, err := os.Getwd()
		if err != nil {
			return err
		}

		stdio := vos.NewVIOAdapter(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		s := commands.NewShell(stdio, dir, os.Environ())
		s.Configure(configuration)

		interactive := !cmd.Flags().Changed("command")
		if configuration.EventLog != "" {
			fd, err := configuration.OpenEventLog()
			if err != nil {
				return err
			}
			defer fd.Close()

			events := logger.NewJSONLinesLogRecorder(fd)
			if id := os.Getenv(commands.EnvSessionID); id != "" {
				// The server owns the session and records its start and end.
				s.Events = events.Session(id)
			} else {
				s.Events = events.NewSession()
				s.Events.RecordSessionStart(dir, interactive)
				defer func() { s.Events.RecordSessionEnd(exitStatus) }()
			}
		}

		if err := s.LoadHistory(); err != nil {
			log.New(cmd.ErrOrStderr(), "", 0).Printf("Couldn't load history: %v", err)
		}

		if interactive {
			exitStatus = s.RunInteractive()
		} else {
			exitStatus = s.RunCommand(command)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
	os.Exit(exitStatus)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config directory or config.yaml path (default: built-in settings for the shell, . for other commands)")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single command line and exit with its status")
}
