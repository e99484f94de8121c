package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/campusgate/campusgate/pkg/audit"
)

var (
	dbURL         = flag.String("db-url", getEnv("CAMPUSGATE_POSTGRES_URL", "postgres://localhost/campusgate?sslmode=disable"), "PostgreSQL connection URL")
	retention     = flag.Duration("retention", getEnvDuration("CAMPUSGATE_AUDIT_RETENTION", 90*24*time.Hour), "How long audit events are kept")
	purgeSchedule = flag.String("purge-schedule", "30 0 * * *", "Cron schedule for the purge job (default: 00:30 UTC)")
	runOnce       = flag.Bool("run-once", false, "Run the purge once and exit")
)

func main() {
	flag.Parse()

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		log.Fatalf("Failed to initialize audit logger: %v", err)
	}

	if *runOnce {
		if err := purge(auditLogger); err != nil {
			log.Fatalf("Purge failed: %v", err)
		}
		return
	}

	c := cron.New()
	_, err = c.AddFunc(*purgeSchedule, func() {
		if err := purge(auditLogger); err != nil {
			log.Printf("Purge failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule purge job: %v", err)
	}

	c.Start()
	log.Printf("Audit retention job started (schedule %q, retention %s)", *purgeSchedule, *retention)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down")
	<-c.Stop().Done()
}

func purge(auditLogger *audit.DBLogger) error {
	cutoff := time.Now().UTC().Add(-*retention)
	log.Printf("Purging audit events older than %s", cutoff.Format(time.RFC3339))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	removed, err := auditLogger.Purge(ctx, cutoff)
	if err != nil {
		return err
	}
	log.Printf("Removed %d audit events", removed)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
