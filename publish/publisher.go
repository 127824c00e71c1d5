// Package publish emits extraction results to NATS JetStream. A nil
// Publisher is valid and publishes nothing, so callers without a
// configured NATS URL degrade gracefully instead of branching.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semharvest/harvest"
)

// Config selects the NATS endpoint and naming for published results.
type Config struct {
	// URL is the NATS server URL.
	URL string
	// Stream is the JetStream stream results land in.
	Stream string
	// SubjectPrefix prefixes every result subject.
	SubjectPrefix string
}

// Publisher publishes extraction results to a JetStream stream.
type Publisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream string
	prefix string
	logger *slog.Logger
}

// Connect establishes the NATS connection and ensures the result stream
// exists. The caller owns the returned Publisher and must Close it.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("semharvest"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &Publisher{
		conn:   conn,
		js:     js,
		stream: cfg.Stream,
		prefix: cfg.SubjectPrefix,
		logger: logger,
	}

	if err := p.ensureStream(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return p, nil
}

// ensureStream creates the result stream if it doesn't exist.
func (p *Publisher) ensureStream(ctx context.Context) error {
	_, err := p.js.Stream(ctx, p.stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("get stream %s: %w", p.stream, err)
	}

	_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        p.stream,
		Description: "Semharvest extraction results",
		Subjects:    []string{p.prefix + ".>"},
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", p.stream, err)
	}

	p.logger.Info("Created result stream", slog.String("stream", p.stream))
	return nil
}

// PublishResult publishes one extraction result. Skips silently on a nil
// Publisher (graceful degradation when NATS is not configured).
func (p *Publisher) PublishResult(ctx context.Context, res *harvest.Result) error {
	if p == nil {
		return nil
	}

	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	subject := ResultSubject(p.prefix, res.Document.ID)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}

	p.logger.Debug("Published extraction result",
		slog.String("subject", subject),
		slog.String("run_id", res.Report.RunID))
	return nil
}

// Close drains and closes the NATS connection. Safe on nil.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Drain()
	p.conn.Close()
}

// ResultSubject returns the subject a document's results publish to.
// Document IDs contain dots, so consumers match with a trailing ">".
func ResultSubject(prefix, docID string) string {
	return fmt.Sprintf("%s.result.%s", prefix, docID)
}
