package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/carelog/internal/constants"
	"github.com/julianstephens/carelog/internal/logger"
	"github.com/julianstephens/carelog/internal/models"
)

// LogSink writes triggers to the application log only.
type LogSink struct{}

func (LogSink) Send(ctx context.Context, t Trigger) error {
	logger.Info("Reminder", "occurrence", t.OccurrenceID, "at", t.At.Format(time.RFC3339), "text", t.Payload)
	return nil
}

func (LogSink) Close() error { return nil }

// NewSink builds the sink named in settings.
func NewSink(s models.Settings) (Sink, error) {
	switch s.NotificationSink {
	case "", constants.SinkTray:
		return NewTraySink(), nil
	case constants.SinkRedis:
		if s.SinkAddress == "" {
			return nil, fmt.Errorf("redis sink needs %s", constants.SettingSinkAddress)
		}
		return NewRedisSink(s.SinkAddress, s.SinkTopic), nil
	case constants.SinkMQTT:
		if s.SinkAddress == "" {
			return nil, fmt.Errorf("mqtt sink needs %s", constants.SettingSinkAddress)
		}
		return NewMQTTSink(s.SinkAddress, s.SinkTopic)
	case constants.SinkLog:
		return LogSink{}, nil
	}
	return nil, fmt.Errorf("unknown notification sink %q", s.NotificationSink)
}
