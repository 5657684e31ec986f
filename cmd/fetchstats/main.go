package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	fetchstats "github.com/PaperElectron/FetchStats"
	"github.com/jkbrsn/taskman"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// probe is a taskman.Task that performs one tracked request per execution.
type probe struct {
	tracker *fetchstats.Tracker
	url     string
}

// Execute sends a tracked request to the probe's target.
func (p probe) Execute() error {
	_, err := p.tracker.Do(context.Background(), p.url, fetchstats.RequestOptions{})
	return err
}

func main() {
	targetURL := flag.String("url", "https://httpbin.org/status/200", "URL to probe")
	cadence := flag.Duration("cadence", 5*time.Second, "interval between probes")
	timeout := flag.Duration("timeout", 3*time.Second, "per-request deadline")
	resetEvery := flag.Int64("reset-every", 0, "clear history every N requests, 0 to disable")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	tracker := fetchstats.New(
		fetchstats.WithTimeout(*timeout),
		fetchstats.WithLogger(log.Logger),
	)
	tracker.RegisterHandler(func(global fetchstats.GlobalStats, _ fetchstats.ActiveStats) (bool, error) {
		log.Info().
			Int64("count", global.Count).
			Int64("ok", global.OK).
			Int64("notOk", global.NotOK).
			Int64("errors", global.Errors).
			Int64("timeouts", global.Timeouts).
			Msg("request completed")
		return *resetEvery > 0 && global.Count % *resetEvery == 0, nil
	})

	manager := taskman.New()
	job := taskman.Job{
		ID:       "probe",
		Cadence:  *cadence,
		NextExec: time.Now().Add(*cadence),
		Tasks:    []taskman.Task{probe{tracker: tracker, url: *targetURL}},
	}
	if err := manager.ScheduleJob(job); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule probe job")
	}
	log.Info().Str("url", *targetURL).Dur("cadence", *cadence).Msg("probing")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	snapshot, err := tracker.StatsJSON()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to export stats")
	}
	log.Info().RawJSON("stats", snapshot).Msg("final stats")
}
