package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// gameResult is the record published for every finished round.
type gameResult struct {
	RoomID     string    `json:"roomId"`
	Players    []string  `json:"players"`
	Scores     []int     `json:"scores"`
	Winner     string    `json:"winner,omitempty"`
	Forfeit    bool      `json:"forfeit"`
	FinishedAt time.Time `json:"finishedAt"`
}

// resultPublisher writes finished-game results to kafka. Publishing is
// fire-and-forget: a broker outage must never stall or fail a game.
type resultPublisher struct {
	cfg    *Config
	writer *kafka.Writer
}

// newResultPublisher returns nil when no broker is configured.
func newResultPublisher(cfg *Config) *resultPublisher {
	if cfg.resultsBroker == "" {
		return nil
	}

	return &resultPublisher{
		cfg: cfg,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.resultsBroker),
			Topic:        cfg.resultsTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (rp *resultPublisher) publish(result gameResult) {
	go func() {
		data, err := json.Marshal(result)
		if err != nil {
			logf(rp.cfg, "ERROR: Marshaling result for room %s: %v", result.RoomID, err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err = rp.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(result.RoomID),
			Value: data,
		})
		if err != nil {
			logf(rp.cfg, "ERROR: Publishing result for room %s: %v", result.RoomID, err)
		}
	}()
}

func (rp *resultPublisher) close() {
	if rp == nil {
		return
	}
	_ = rp.writer.Close()
}
