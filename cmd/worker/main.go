package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rfidtrack/internal/attend"
	"rfidtrack/internal/config"
	"rfidtrack/internal/export"
	"rfidtrack/internal/metrics"
	"rfidtrack/internal/notify"
	"rfidtrack/internal/queue"
	"rfidtrack/internal/store"
)

// Worker consumes queue messages: accepted scans are broadcast to live
// subscribers, export requests are rendered to CSV files.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	backing := store.NewPostgres(db.Client)

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.NotifyBackend != "off" {
		notifier = notify.NewRedisNotifier(redisClient.Client, "")
	}
	notifier = notify.Log(notifier)

	sink, err := export.NewFileSink(cfg.ExportDir)
	if err != nil {
		log.Fatalf("export sink init failed: %v", err)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		switch msg.Kind {
		case queue.KindScan:
			var evt queue.ScanEvent
			if err := json.Unmarshal(msg.Body, &evt); err != nil {
				log.Printf("bad scan payload: %v", err)
				continue
			}
			_ = notifier.Publish(ctx, notify.Update{
				Kind:        "scan",
				SessionID:   evt.SessionID,
				CardNumber:  evt.CardNumber,
				ProfileName: evt.ProfileName,
				At:          evt.ScanTime,
			})

		case queue.KindExport:
			var req queue.ExportRequest
			if err := json.Unmarshal(msg.Body, &req); err != nil {
				log.Printf("bad export payload: %v", err)
				continue
			}
			if path, err := runExport(ctx, backing, sink, req.SessionID); err != nil {
				log.Printf("export for session %s failed: %v", req.SessionID, err)
			} else {
				metrics.ObserveExport()
				log.Printf("export for session %s written to %s", req.SessionID, path)
			}
		}
	}

	log.Println("worker stopped")
}

func runExport(ctx context.Context, backing attend.Store, sink export.Sink, sessionID string) (string, error) {
	session, err := backing.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	entries, err := backing.AttendanceBySession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	data, err := export.CSV(session, entries)
	if err != nil {
		return "", err
	}
	return sink.Write(session, data, time.Now().UTC())
}
