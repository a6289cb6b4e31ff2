package config

import "github.com/spf13/cobra"

// BindFlags registers the cobra flags that can override file-based config
// values. ApplyOverrides detects "flag not set" via cmd.Flags().Changed,
// so a flag's default (the zero value, or -1 for the two period flags)
// never reaches cfg.
func BindFlags(cmd *cobra.Command) {
	cmd.Flags().String("command-topic", "", "override the command topic URI")
	cmd.Flags().String("status-report-uri", "", "override the status topic URI")
	cmd.Flags().String("metrics-uri", "", "override the metrics line-protocol sink URL")
	cmd.Flags().StringSlice("brokers", nil, "override the default broker list")
	cmd.Flags().Int("conversion-threads", 0, "override the converter worker pool size")
	cmd.Flags().Int("main-poll-interval-ms", 0, "override the main loop tick interval, in milliseconds")
	cmd.Flags().Int("period-ms", -1, "override the liveness re-emit period, in milliseconds (0 disables)")
	cmd.Flags().Int("fake-pv-period-ms", -1, "override the synthetic-update period, in milliseconds (0 disables)")
}

// ApplyOverrides layers any cobra flags the operator actually set on top
// of cfg loaded from file.
func ApplyOverrides(cfg *Config, cmd *cobra.Command) error {
	flags := cmd.Flags()

	if flags.Changed("command-topic") {
		cfg.CommandTopic, _ = flags.GetString("command-topic")
	}
	if flags.Changed("status-report-uri") {
		cfg.StatusReportURI, _ = flags.GetString("status-report-uri")
	}
	if flags.Changed("metrics-uri") {
		cfg.MetricsURI, _ = flags.GetString("metrics-uri")
	}
	if flags.Changed("brokers") {
		cfg.Brokers, _ = flags.GetStringSlice("brokers")
	}
	if flags.Changed("conversion-threads") {
		cfg.ConversionThreads, _ = flags.GetInt("conversion-threads")
	}
	if flags.Changed("main-poll-interval-ms") {
		cfg.MainPollIntervalMS, _ = flags.GetInt("main-poll-interval-ms")
	}
	if flags.Changed("period-ms") {
		cfg.PeriodMS, _ = flags.GetInt("period-ms")
	}
	if flags.Changed("fake-pv-period-ms") {
		cfg.FakePVPeriodMS, _ = flags.GetInt("fake-pv-period-ms")
	}
	return nil
}
