// Command dommirror replicates dom trees.
//
// Usage:
//
//	dommirror -serve -config dommirror.yaml           # replica receiver
//	dommirror -snapshot -html page.html               # emit the initial sync of a page to the configured sinks
//	dommirror -replay records.jsonl [-html page.html] # replay envelopes offline and print the replica
//	dommirror -replay session.db [-root id]           # replay a journal from its latest snapshot
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hazyhaar/dommirror/dom"
	"github.com/hazyhaar/dommirror/journal"
	"github.com/hazyhaar/dommirror/mirror"
	"github.com/hazyhaar/dommirror/mutation"
	"github.com/hazyhaar/dommirror/transport"
)

func main() {
	configPath := flag.String("config", "", "path to dommirror.yaml config file")
	serve := flag.Bool("serve", false, "run the replica receiver")
	snapshot := flag.Bool("snapshot", false, "emit the initial sync snapshot of -html and exit")
	replay := flag.String("replay", "", "replay a JSON lines envelope file or a .db journal and print the replica")
	rootID := flag.String("root", "", "root to replay from a journal (default: the only one recorded)")
	htmlPath := flag.String("html", "", "HTML document: the primary for -snapshot, the starting replica for -replay")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dommirror:", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *serve:
		err = runServe(ctx, logger, cfg)
	case *snapshot:
		err = runSnapshot(ctx, logger, cfg, *htmlPath, os.Stdout)
	case *replay != "":
		if strings.HasSuffix(*replay, ".db") {
			err = runJournalReplay(ctx, logger, *replay, *rootID, os.Stdout)
		} else {
			err = runReplay(ctx, logger, *replay, *htmlPath, os.Stdout)
		}
	default:
		fmt.Fprintln(os.Stderr, "usage: dommirror -serve | -snapshot -html <file> | -replay <file> [-html <file>]")
		os.Exit(2)
	}
	if err != nil {
		logger.Error("dommirror: fatal", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*mirror.Config, error) {
	if path == "" {
		return mirror.ParseConfig([]byte("{}"))
	}
	cfg, err := mirror.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *mirror.Config) error {
	hub := mirror.NewHub(mirror.HubConfig{InertScripts: *cfg.Replica.InertScripts, Logger: logger})
	rc := transport.NewReceiver(hub, transport.ReceiverConfig{
		MaxBody:  cfg.Replica.MaxBody,
		Sanitize: *cfg.Replica.SanitizeView,
		Logger:   logger,
	})
	srv := &http.Server{
		Addr:              cfg.Replica.Listen,
		Handler:           rc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dommirror: replica receiver listening", "addr", cfg.Replica.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("dommirror: replica receiver stopped", "roots", hub.Roots())
	return nil
}

// buildSinks turns the configured sinks into one transport.Sink.
func buildSinks(logger *slog.Logger, cfg *mirror.Config, stdout io.Writer) (transport.Sink, error) {
	var sinks []transport.Sink
	for _, sc := range cfg.Primary.Sinks {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, transport.NewStdout(stdout))
		case "webhook":
			sinks = append(sinks, transport.NewWebhook(sc.URL,
				transport.WithWebhookRetries(sc.Retries),
				transport.WithWebhookLogger(logger)))
		case "journal":
			j, err := journal.Open(sc.Path, journal.WithMkdirAll(), journal.WithLogger(logger))
			if err != nil {
				for _, s := range sinks {
					s.Close()
				}
				return nil, err
			}
			sinks = append(sinks, j)
		default:
			logger.Warn("dommirror: unknown sink type", "type", sc.Type)
		}
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return transport.NewRouter(logger, sinks...), nil
}

func runSnapshot(ctx context.Context, logger *slog.Logger, cfg *mirror.Config, htmlPath string, stdout io.Writer) error {
	if htmlPath == "" {
		return errors.New("-snapshot needs -html")
	}
	doc, err := parseFile(htmlPath)
	if err != nil {
		return err
	}
	sink, err := buildSinks(logger, cfg, stdout)
	if err != nil {
		return err
	}
	defer sink.Close()

	p, err := mirror.NewPrimary(doc.Node(), sink,
		mirror.WithRootID(cfg.Primary.RootID),
		mirror.WithQueueSize(cfg.Primary.QueueSize),
		mirror.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := p.Sync(); err != nil {
		return err
	}
	p.Close()
	return p.Run(ctx)
}

func runReplay(ctx context.Context, logger *slog.Logger, path, htmlPath string, stdout io.Writer) error {
	doc := dom.NewHTMLDocument(dom.WithInertScripts())
	if htmlPath != "" {
		f, err := os.Open(htmlPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if doc, err = dom.Parse(f, dom.WithInertScripts()); err != nil {
			return fmt.Errorf("parse %s: %w", htmlPath, err)
		}
	}
	rep := mirror.NewReplica(doc, logger)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), 64<<20)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		env, err := mutation.UnmarshalEnvelope(sc.Bytes())
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if err := rep.Deliver(ctx, *env); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	logger.Info("dommirror: replay done", "envelopes", line, "applied", rep.Applied())

	markup, err := rep.Markup()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, markup)
	return err
}

func runJournalReplay(ctx context.Context, logger *slog.Logger, path, root string, stdout io.Writer) error {
	j, err := journal.Open(path, journal.WithLogger(logger))
	if err != nil {
		return err
	}
	defer j.Close()

	if root == "" {
		roots, err := j.Roots(ctx)
		if err != nil {
			return err
		}
		if len(roots) != 1 {
			return fmt.Errorf("%s holds %d roots, pick one with -root", path, len(roots))
		}
		root = roots[0]
	}

	rep := mirror.NewReplica(dom.NewHTMLDocument(dom.WithInertScripts()), logger)
	n, err := j.Replay(ctx, root, func(env mutation.Envelope) error {
		return rep.Deliver(ctx, env)
	})
	if err != nil {
		return err
	}
	logger.Info("dommirror: journal replay done", "root", root, "envelopes", n)

	markup, err := rep.Markup()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, markup)
	return err
}

func parseFile(path string) (*dom.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := dom.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}
