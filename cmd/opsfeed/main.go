package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "opsfeed",
	Short: "Follow live IOCCA operations reasoning streams",
	Long: `opsfeed maintains a single websocket connection to the operations
server, demultiplexes the interleaved reasoning feed into per-stream buffers,
and renders each stream's lifecycle in the terminal.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.opsfeed.yaml)")
	rootCmd.PersistentFlags().String("server", "http://localhost:8000", "ops server base URL")
	rootCmd.PersistentFlags().String("ws-url", "ws://localhost:8000/ws", "feed websocket URL")
	rootCmd.PersistentFlags().Duration("retry-delay", 3*time.Second, "fixed interval between reconnect attempts")
	rootCmd.PersistentFlags().Int("max-retries", 5, "reconnect attempts before giving up")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	cobra.CheckErr(viper.BindPFlags(rootCmd.PersistentFlags()))

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(triggerCmd)
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".opsfeed")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("OPSFEED")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		return err
	}

	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	return nil
}
