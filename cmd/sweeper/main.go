// Command sweeper runs one sweep of expired groups and ended voting periods
// and exits. It is meant for cron deployments where the API server runs
// without its background sweeper.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"ms-lunch/internal/config"
	"ms-lunch/internal/database"
	"ms-lunch/internal/events"
	"ms-lunch/internal/group"
	groupdb "ms-lunch/internal/group/db"
	"ms-lunch/internal/kafka"
	"ms-lunch/internal/logger"
	restdb "ms-lunch/internal/restaurant/db"
	"ms-lunch/internal/sweeper"
	"ms-lunch/internal/voting"
	votingdb "ms-lunch/internal/voting/db"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Service: "lunch-sweeper", MinLevel: cfg.Log.Level, Terminal: os.Stdout})
	if err != nil {
		log = logger.NewLogger()
	}
	defer log.Close()
	if err := cfg.Voting.Validate(); err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Voting window rejected: %v", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	bunDB, err := database.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open database: %v", err))
	}
	defer bunDB.Close()

	var pub events.Publisher = events.Nop{}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		pub = events.NewDispatcher(producer, map[string]string{
			"voting": cfg.Kafka.Topics.Voting,
			"groups": cfg.Kafka.Topics.Groups,
		}, nil, nil, log)
	}

	restaurants := &restdb.DB{Bun: bunDB}
	groups := group.NewService(&groupdb.DB{Bun: bunDB}, restaurants, nil, nil, pub, log)
	periods := voting.NewService(&votingdb.DB{Bun: bunDB}, restaurants, cfg.Voting, pub, nil, log)

	res, err := sweeper.New(groups, periods, 0, log).RunOnce(ctx)
	log.Info("SWEEPER", fmt.Sprintf("Closed %d groups, completed %d voting periods", res.GroupsClosed, res.PeriodsCompleted))
	if err != nil {
		log.Error("SWEEPER", fmt.Sprintf("Sweep finished with errors: %v", err))
		os.Exit(1)
	}
}
