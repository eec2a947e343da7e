package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-fleet/internal/fleet"
)

// reportTimeout bounds the store work for a single device report.
const reportTimeout = 10 * time.Second

// Registrar records a device self-report. *fleet.Reconciler implements it.
type Registrar interface {
	RegisterDevice(ctx context.Context, req fleet.RegisterRequest) (*fleet.Registration, error)
}

// ReportHandler returns a MessageHandler that feeds report payloads to reg.
// The payload may be empty. When it carries no serial, the topic's last
// level is used; a report naming no serial at all is rejected rather than
// attributed to the host running the service. Reports are marked Remote, so
// a missing address leaves the stored one untouched.
func ReportHandler(reg Registrar, logger Logger) MessageHandler {
	return func(topic string, payload []byte) error {
		req, err := parseReport(topic, payload)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(fleet.WithSource(context.Background(), fleet.SourceMQTT), reportTimeout)
		defer cancel()

		result, err := reg.RegisterDevice(ctx, req)
		if err != nil {
			return fmt.Errorf("registering report from %s: %w", topic, err)
		}

		if logger != nil {
			logger.Debug("device report applied",
				"topic", topic,
				"serial", result.Serial,
				"created", result.Created,
			)
		}
		return nil
	}
}

func parseReport(topic string, payload []byte) (fleet.RegisterRequest, error) {
	req := fleet.RegisterRequest{Remote: true}
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidReport, err)
		}
	}
	req.Serial = strings.TrimSpace(req.Serial)
	if req.Serial != "" {
		return req, nil
	}
	if level := LastLevel(topic); ValidLevel(level) {
		req.Serial = level
		return req, nil
	}
	return req, fmt.Errorf("%w: no serial in payload or topic %q", ErrInvalidReport, topic)
}

// SubscribeReports subscribes to {prefix}/report/+ and feeds every report
// to reg. Handler errors are logged through the client's logger.
func (c *Client) SubscribeReports(reg Registrar) error {
	return c.Subscribe(c.topics.AllReports(), c.QoS(), ReportHandler(reg, c.getLogger()))
}
