package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/lehoangnam/glamping-reconciliation/internal/alert"
	"github.com/lehoangnam/glamping-reconciliation/internal/commission"
	"github.com/lehoangnam/glamping-reconciliation/internal/config"
	"github.com/lehoangnam/glamping-reconciliation/internal/database"
	"github.com/lehoangnam/glamping-reconciliation/internal/handler"
	"github.com/lehoangnam/glamping-reconciliation/internal/notify"
	"github.com/lehoangnam/glamping-reconciliation/internal/queue"
	"github.com/lehoangnam/glamping-reconciliation/internal/reconcile"
	"github.com/lehoangnam/glamping-reconciliation/internal/repository"
	"github.com/lehoangnam/glamping-reconciliation/internal/router"
)

func main() {
	// Load .env when present; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs rate limiting, the admin response cache and the webhook
	// failure counters.  nil degrades all three to no-ops.
	rdb := config.NewRedisClient()

	transactions := repository.NewTransactionRepo(db)
	campings := repository.NewCampingBookingRepo(db)
	glampings := repository.NewGlampingBookingRepo(db)
	payments := repository.NewPaymentRepo(db)
	accounts := repository.NewBankAccountRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	brokerURL := queue.BrokerURL()
	notifier := notify.NewAMQPNotifier(brokerURL)
	recalc := commission.NewAMQPRecalculator(brokerURL)
	monitor := alert.NewMonitor(rdb, notifier, cfg.AlertFailureThreshold)

	svc := reconcile.New(reconcile.Deps{
		DB:           db,
		Transactions: transactions,
		Camping:      campings,
		Glamping:     glampings,
		Payments:     payments,
		Accounts:     accounts,
		Notifier:     notifier,
		Commission:   recalc,
	})

	// Background consumer mirrors payment events into logs/payments.log.
	go func() {
		if err := queue.StartPaymentConsumer(); err != nil {
			log.Printf("payment-consumer: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e, handler.NewWebhookHandler(svc, transactions, monitor, cfg.SepayWebhookSecret), rdb)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterAdmin(e, handler.NewAdminTransactionHandler(transactions, svc), cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
