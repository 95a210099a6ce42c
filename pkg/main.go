package main

import (
	"os"
	"os/signal"
	"syscall"

	pkg "github.com/afyalink/telecare/pkg/internal"
	"github.com/afyalink/telecare/pkg/internal/database"
	web "github.com/afyalink/telecare/pkg/internal/http"
	"github.com/afyalink/telecare/pkg/internal/http/api"
	"github.com/afyalink/telecare/pkg/internal/media"
	"github.com/afyalink/telecare/pkg/internal/payments"
	"github.com/afyalink/telecare/pkg/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	// Configure settings
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("settings")
	viper.SetConfigType("toml")

	// Load settings
	if err := viper.ReadInConfig(); err != nil {
		log.Panic().Err(err).Msg("An error occurred when loading settings.")
	}

	// Connect to database
	if err := database.NewSource(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when connect to database.")
	} else if err := database.RunMigration(database.C); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when running database auto migration.")
	}

	// Core subsystems
	channel := services.NewSignalingChannel(database.NewSignalingStore(database.C))
	calls := services.NewCallManager(media.NewPionRuntime(), channel)
	ledger := database.NewTransactionStore(database.C)
	orchestrator := payments.NewOrchestrator(ledger, payments.DefaultProviders())
	if interval := viper.GetDuration("payments.poll_interval"); interval > 0 {
		orchestrator.PollInterval = interval
	}
	if attempts := viper.GetInt("payments.max_poll_attempts"); attempts > 0 {
		orchestrator.MaxPollAttempts = attempts
	}

	// Server
	web.NewServer(api.Dependencies{
		Channel:      channel,
		Calls:        calls,
		Payments:     orchestrator,
		Transactions: ledger,
	})
	go web.Listen()

	// Configure timed tasks
	quartz := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	quartz.AddFunc("@every 60m", services.DoAutoDatabaseCleanup)
	quartz.Start()

	log.Info().Msgf("Telecare v%s is started...", pkg.AppVersion)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msgf("Telecare v%s is quitting...", pkg.AppVersion)

	quartz.Stop()
}
