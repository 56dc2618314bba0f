package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flywheel-sh/fcpcore/pkg/cursorstore"
	"github.com/flywheel-sh/fcpcore/pkg/fcpconfig"
	"github.com/flywheel-sh/fcpcore/pkg/objecthdr"
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
	"github.com/flywheel-sh/fcpcore/pkg/obslog"
	"github.com/flywheel-sh/fcpcore/pkg/provenance"
	"github.com/flywheel-sh/fcpcore/pkg/supervisor"
)

// cliCursor adapts a cursorstore.Store to supervisor.PollingCursor: the
// offset this connector has consumed through, persisted as a
// ConnectorStateObject commit on every successful batch.
type cliCursor struct {
	store       *cursorstore.Store
	zoneID      string
	connectorID string
	offset      int64
	lease       cursorstore.Lease
}

func (c *cliCursor) Offset() *int64 { return &c.offset }

func (c *cliCursor) RecordPoll(_ time.Time, itemCount int) {
	c.offset += int64(itemCount)
}

func (c *cliCursor) Restore() error {
	if err := c.store.Load(context.Background()); err != nil {
		return err
	}
	_, obj, ok := c.store.Head()
	if ok && obj.Cursor.Offset != nil {
		c.offset = *obj.Cursor.Offset
	}
	return nil
}

func (c *cliCursor) Persist() error {
	header := objecthdr.Header{
		Schema:    objectid.SchemaId{Namespace: "fcp.connector_state", Name: "state_object", Version: "1.0.0"},
		ZoneID:    provenance.ZoneId(c.zoneID),
		CreatedAt: time.Now().Unix(),
	}
	offset := c.offset
	_, err := c.store.CommitCursor(context.Background(), header, cursorstore.Cursor{Offset: &offset}, c.lease)
	return err
}

func buildCursorStoreBackend(cfg fcpconfig.Config, connectorKey string) (cursorstore.Backend, error) {
	switch cfg.CursorStoreBackend {
	case "postgres":
		b, err := cursorstore.NewPostgresBackend(cfg.CursorStoreDSN, connectorKey)
		if err != nil {
			return nil, err
		}
		if err := b.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
		return b, nil
	case "sqlite":
		b, err := cursorstore.NewSQLiteBackend(cfg.CursorStoreDSN, connectorKey)
		if err != nil {
			return nil, err
		}
		if err := b.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
		return b, nil
	case "memory", "":
		return cursorstore.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("supervise: unsupported FCP_CURSOR_STORE_BACKEND %q for the CLI demo loop (use memory, postgres, or sqlite)", cfg.CursorStoreBackend)
	}
}

func runSuperviseCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("supervise", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var zoneID, connectorID string
	var pollIntervalMs int64
	cmd.StringVar(&zoneID, "zone-id", "", "Zone id owning this connector's cursor state (REQUIRED)")
	cmd.StringVar(&connectorID, "connector-id", "", "Connector id to supervise (REQUIRED)")
	cmd.Int64Var(&pollIntervalMs, "poll-interval-ms", 1000, "Steady-state poll interval in milliseconds")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if zoneID == "" || connectorID == "" {
		fmt.Fprintln(stderr, "Usage: fcpcore supervise -zone-id <id> -connector-id <id> [-poll-interval-ms 1000]")
		return 2
	}

	cfg := fcpconfig.Load()
	log := obslog.NewLogger(cfg.LogFormat, cfg.LogLevel)

	backend, err := buildCursorStoreBackend(cfg, zoneID+"/"+connectorID)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	store := cursorstore.New(backend)
	cursor := &cliCursor{
		store:       store,
		zoneID:      zoneID,
		connectorID: connectorID,
		lease:       cursorstore.Lease{LeaseSeq: 1, OwnerID: "fcpcore-supervise"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("supervise: shutdown signal received")
		cancel()
	}()

	sup := supervisor.NewPolling[*cliCursor, string](cfg.Supervisor, cursor, log)

	pollFn := func(_ context.Context, offset *int64) supervisor.PollOutcome[string] {
		next := int64(0)
		if offset != nil {
			next = *offset + 1
		}
		return supervisor.PollSuccess([]string{fmt.Sprintf("tick-%d", next)})
	}
	processFn := func(items []string, c *cliCursor) error {
		for _, item := range items {
			log.Info("supervise: processed item", "connector_id", connectorID, "item", item)
		}
		return nil
	}

	outcome := sup.Run(ctx, time.Duration(pollIntervalMs)*time.Millisecond, pollFn, processFn)
	fmt.Fprintf(stdout, "supervise: stopped: %s (%s)\n", outcome.Kind, outcome.Message)
	if outcome.Kind == supervisor.OutcomeFatalError || outcome.Kind == supervisor.OutcomeMaxFailuresReached {
		return 1
	}
	return 0
}
