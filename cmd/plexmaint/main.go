package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"plexmaint/internal/crypto"
	"plexmaint/internal/deletion"
	"plexmaint/internal/jobs"
	"plexmaint/internal/media"
	"plexmaint/internal/queue"
	"plexmaint/internal/scan"
	"plexmaint/internal/server"
	"plexmaint/internal/store"
)

func main() {
	dbPath := envOr("DB_PATH", "./data/plexmaint.db")
	listenAddr := envOr("LISTEN_ADDR", ":7936")
	migrationsDir := envOr("MIGRATIONS_DIR", "./migrations")
	redisURL := os.Getenv("REDIS_URL")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		log.Fatal(err)
	}

	var storeOpts []store.Option
	if key := os.Getenv("ENCRYPTION_KEY"); key != "" {
		enc, err := crypto.NewEncryptor(key)
		if err != nil {
			log.Fatalf("initializing encryption: %v", err)
		}
		storeOpts = append(storeOpts, store.WithEncryptor(enc))
	} else {
		log.Println("ENCRYPTION_KEY not set — integration API keys stored in plain text")
	}

	st, err := store.New(dbPath, storeOpts...)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer st.Close()

	if err := st.Migrate(migrationsDir); err != nil {
		log.Fatalf("running migrations: %v", err)
	}

	rdb, err := queue.NewClient(redisURL)
	if err != nil {
		log.Fatalf("connecting to redis: %v", err)
	}
	defer rdb.Close()

	sources := media.NewFactory(st)
	orchestrator := scan.New(st, sources)
	executor := deletion.New(st, sources)

	scanQueue := queue.New(rdb, queue.ScanQueueConfig())
	deletionQueue := queue.New(rdb, queue.DeletionQueueConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanWorker := queue.NewWorker(scanQueue, jobs.ScanHandler(st, orchestrator))
	scanWorker.Start(ctx)
	defer scanWorker.Stop()

	deletionWorker := queue.NewWorker(deletionQueue, jobs.DeletionHandler(executor))
	deletionWorker.Start(ctx)
	defer deletionWorker.Stop()

	scheduler := queue.NewScheduler(st, scanQueue)
	scheduler.Start()
	defer scheduler.Stop()
	go scheduler.SyncAllWithRetry(ctx, 30*time.Second)

	srv := server.New(listenAddr, st, scheduler, scanQueue, deletionQueue)

	go func() {
		log.Printf("plexmaint listening on %s", listenAddr)
		if err := srv.Start(); err != nil {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
