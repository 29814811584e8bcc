package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/signsense/signsense/internal/services"
	"github.com/signsense/signsense/internal/utils"
)

const (
	StreamName  = "VIDEOS"
	SubjectName = "videos.process"
	DurableName = "signsense-pipeline"
)

// ProcessRequest is the message shape external producers publish when they
// want a video run through the pipeline without touching the HTTP API.
type ProcessRequest struct {
	VideoID string `json:"video_id"`
}

// Consumer bridges a JetStream subject to pipeline submission. It is an
// optional inbound path; the HTTP upload flow submits jobs directly.
type Consumer struct {
	js       nats.JetStreamContext
	pipeline services.PipelineService
	log      *logrus.Logger
	sub      *nats.Subscription
}

func NewConsumer(js nats.JetStreamContext, pipeline services.PipelineService, log *logrus.Logger) *Consumer {
	return &Consumer{js: js, pipeline: pipeline, log: log}
}

// Start ensures the stream exists and attaches a durable push subscription.
func (c *Consumer) Start(ctx context.Context) error {
	_, err := c.js.StreamInfo(StreamName)
	if errors.Is(err, nats.ErrStreamNotFound) {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     StreamName,
			Subjects: []string{SubjectName},
			Storage:  nats.FileStorage,
		})
	}
	if err != nil {
		return err
	}

	sub, err := c.js.Subscribe(SubjectName, func(msg *nats.Msg) {
		c.handle(ctx, msg)
	}, nats.Durable(DurableName), nats.ManualAck(), nats.AckWait(30*time.Second))
	if err != nil {
		return err
	}
	c.sub = sub

	c.log.WithField("subject", SubjectName).Info("nats pipeline consumer started")
	return nil
}

func (c *Consumer) Stop() {
	if c.sub != nil {
		_ = c.sub.Drain()
	}
}

func (c *Consumer) handle(ctx context.Context, msg *nats.Msg) {
	var req ProcessRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.VideoID == "" {
		c.log.WithError(err).Warn("dropping malformed process request")
		_ = msg.Term() // never redeliver junk
		return
	}

	log := c.log.WithField("video_id", req.VideoID)

	jobID, err := c.pipeline.SubmitFullPipeline(ctx, req.VideoID)
	if err != nil {
		switch {
		case utils.IsCode(err, utils.CodeConflict):
			// a job is already in flight; the request is satisfied
			log.Info("pipeline already in flight, acking")
			_ = msg.Ack()
		case utils.IsCode(err, utils.CodeNotFound):
			log.Warn("process request for unknown video")
			_ = msg.Term()
		default:
			log.WithError(err).Error("pipeline submission failed, will redeliver")
			_ = msg.Nak()
		}
		return
	}

	log.WithField("job_id", jobID).Info("pipeline submitted from nats")
	_ = msg.Ack()
}
