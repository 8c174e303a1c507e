// Command weather-alerts ingests National Weather Service alerts and pushes
// them to registered devices.
//
// Usage:
//
//	weather-alerts serve
//	weather-alerts ingest
//	weather-alerts expire --days 7
//	weather-alerts notify-test --user 42 --title "Hello"
//	weather-alerts register-token --user 42 --token <fcm-token>
package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mr1hm/go-weather-alerts/internal/logging"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "weather-alerts",
		Short:         "Weather alert ingestion and push notification service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(expireCmd())
	root.AddCommand(notifyTestCmd())
	root.AddCommand(registerTokenCmd())

	if err := root.Execute(); err != nil {
		logging.Fatalf("%s: %v", root.Name(), err)
	}
}
