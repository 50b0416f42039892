package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grouprank/strava-ranking/internal/logging"
)

var (
	verbosity int
	dbPath    string
	port      int
)

var rootCmd = &cobra.Command{
	Use:   "strava-ranking",
	Short: "Group distance leaderboard over Strava activities",
	Long: `strava-ranking imports the activities of a group of Strava-authorized
athletes into a local SQLite database and serves monthly and weekly
distance leaderboards over HTTP.

Configuration comes from environment variables (STRAVA_CLIENT_ID,
STRAVA_CLIENT_SECRET, REDIRECT_URI, PORT, DB_PATH, FRONTEND_URL); the
--db and --port flags override the database path and listen port.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logging.Level(verbosity))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return Run(dbPath, port)
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase verbosity (-v for debug)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to SQLite database file (overrides DB_PATH)")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 0, "HTTP listen port (overrides PORT)")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
