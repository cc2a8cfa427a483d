package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"frontdesk/internal/books"
	"frontdesk/internal/config"
	"frontdesk/internal/equipment"
	"frontdesk/internal/events"
	"frontdesk/internal/reminders"
	"frontdesk/internal/session"
	"frontdesk/internal/store"
	"frontdesk/internal/sweeper"
)

// Standalone auto-expiry sweeper. The api binary runs the same loop; deploy
// this one when the API is scaled out and the sweep should run once, not per
// replica.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	redisClient := store.NewRedis(cfg.RedisAddr)

	var pub events.Publisher
	if cfg.EventBackend == "memory" {
		pub = events.NewInMemory()
	} else {
		pub = events.NewRedisPublisher(redisClient.Client, "frontdesk")
	}

	bookSvc := books.NewService(books.NewPGRepo(db.Client), pub, cfg.FineDailyRate)
	remSvc := reminders.NewService(bookSvc, nil)
	sessionSvc := session.NewService(session.NewPGRepo(db.Client), pub, remSvc, cfg.StudentSessionTTL)
	equipSvc := equipment.NewService(equipment.NewPGRepo(db.Client), pub, cfg.EquipmentSessionTTL)

	sweep := sweeper.New(sessionSvc, equipSvc, cfg.SweepInterval, cfg.SweepRetries)
	sweep.TrackActive(func(ctx context.Context) (int, error) {
		rows, err := sessionSvc.ActiveSessions(ctx)
		return len(rows), err
	})

	log.Printf("sweeper started, interval %s", cfg.SweepInterval)
	sweep.Run(ctx)
	log.Println("sweeper stopped")
}
