package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	transfer "fund_transfer_back"
	"fund_transfer_back/pkg/accountclient"
	"fund_transfer_back/pkg/cache"
	"fund_transfer_back/pkg/handler"
	"fund_transfer_back/pkg/lock"
	"fund_transfer_back/pkg/notifier"
	"fund_transfer_back/pkg/orchestrator"
	"fund_transfer_back/pkg/repository"
	"fund_transfer_back/pkg/service"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))
	logrus.Infoln("Запуск сервиса переводов")
	if err := godotenv.Load(); err != nil {
		logrus.Infof("Ошибка инициализации переменных окружения .env: %s", err)
	}

	if err := InitConfig(); err != nil {
		logrus.Fatalf("Ошибка (viper) при инициализации конфига .yaml: %s", err.Error())
	}
	if level, err := logrus.ParseLevel(viper.GetString("log.level")); err == nil {
		logrus.SetLevel(level)
	}
	logrus.Infoln("Конфиг YAML инициализирован")

	repos := initRepository()

	var ledger orchestrator.RetryLedger = cache.NewRetryLedger()
	if viper.GetBool("retry_ledger.durable") {
		ledger = cache.NewDurableRetryLedger(repos.LegJournal)
		logrus.Info("retry ledger is backed by the leg journal")
	}

	gateway := accountclient.NewClient(accountclient.Config{
		BaseURL: viper.GetString("gateway.base_url"),
		Timeout: viper.GetDuration("gateway.timeout"),
		Breaker: accountclient.BreakerConfig{
			MaxRequests:         viper.GetUint32("gateway.breaker.max_requests"),
			Interval:            viper.GetDuration("gateway.breaker.interval"),
			Timeout:             viper.GetDuration("gateway.breaker.timeout"),
			ConsecutiveFailures: viper.GetUint32("gateway.breaker.consecutive_failures"),
		},
	})

	var events notifier.EventPublisher
	if viper.GetBool("kafka.enabled") {
		publisher := notifier.NewKafkaPublisher(viper.GetStringSlice("kafka.brokers"), viper.GetString("kafka.topic"))
		defer publisher.Close()
		events = publisher
	}
	dispatcher := notifier.NewDispatcher(initMailNotifier(), events)

	orch := orchestrator.New(repos.Transfer, gateway, ledger, dispatcher, orchestrator.Config{
		Workers:                viper.GetInt("orchestrator.workers"),
		MaxAttempts:            viper.GetInt("orchestrator.max_attempts"),
		CompensateFailedCredit: viper.GetBool("orchestrator.compensate_failed_credit"),
	})

	var lease orchestrator.Lease
	if viper.GetBool("redis.enabled") {
		redisLease := lock.NewRedisLease(lock.Config{
			Addr:     viper.GetString("redis.addr"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       viper.GetInt("redis.db"),
			Key:      viper.GetString("redis.lease_key"),
			TTL:      viper.GetDuration("redis.lease_ttl"),
		})
		defer redisLease.Close()
		lease = redisLease
	}

	scheduler := orchestrator.NewScheduler(orch, lease, orchestrator.SchedulerConfig{
		Interval:       viper.GetDuration("orchestrator.interval"),
		RecoverOnStart: viper.GetBool("orchestrator.recover_on_start"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := scheduler.Run(ctx); err != nil {
			logrus.Errorf("Ошибка планировщика: %s", err)
		}
	}()

	handlers := handler.NewHandler(service.NewService(repos), viper.GetStringSlice("http.allow_origins"))
	srv := new(transfer.Server)
	go func() {
		if err := srv.Run(port(), handlers.InitRoute()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Ошибка при запуске сервера: %s", err)
		}
	}()
	logrus.WithField("port", port()).Info("Сервер запущен")

	<-ctx.Done()
	logrus.Info("Остановка сервиса")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("shutdown_timeout"))
	defer cancel()

	if err := scheduler.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Ошибка при остановке планировщика: %s", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Ошибка при остановке сервера: %s", err)
	}
}

func initRepository() *repository.Repository {
	if viper.GetString("store.driver") == "memory" {
		logrus.Warn("in-memory store: transfers are lost on restart")
		return repository.NewMemoryRepository()
	}

	db, err := repository.NewPostgresDB(repository.Config{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   viper.GetString("db.dbname"),
		SSLMode:  viper.GetString("db.sslmode"),
	})
	if err != nil {
		logrus.Fatalf("Ошибка при инициализации базы данных: %s", err.Error())
	}
	if viper.GetBool("db.migrate") {
		if err := repository.Migrate(db); err != nil {
			logrus.Fatalf("Ошибка миграции: %s", err.Error())
		}
	}
	logrus.Info("База данных подключена")
	return repository.NewRepository(db)
}

func initMailNotifier() notifier.Notifier {
	switch viper.GetString("notifier.driver") {
	case "mailjet":
		n, err := notifier.NewMailjetNotifier(notifier.MailjetConfig{
			APIKey:    os.Getenv("MAILJET_API_KEY"),
			SecretKey: os.Getenv("MAILJET_SECRET_KEY"),
			FromEmail: viper.GetString("notifier.from_email"),
			FromName:  viper.GetString("notifier.from_name"),
		})
		if err != nil {
			logrus.Fatalf("Ошибка инициализации mailjet: %s", err)
		}
		return n
	case "smtp":
		return notifier.NewSMTPNotifier(notifier.SMTPConfig{
			Host:     viper.GetString("notifier.smtp.host"),
			Port:     viper.GetInt("notifier.smtp.port"),
			Username: viper.GetString("notifier.smtp.username"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     viper.GetString("notifier.from_email"),
		})
	default:
		return notifier.LogNotifier{}
	}
}

func port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return viper.GetString("http.port")
}

func InitConfig() error {
	viper.AddConfigPath("configs")
	viper.SetConfigName("config")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("http.port", "8000")
	viper.SetDefault("shutdown_timeout", 30*time.Second)
	viper.SetDefault("store.driver", "postgres")
	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("db.migrate", true)
	viper.SetDefault("gateway.timeout", 10*time.Second)
	viper.SetDefault("orchestrator.interval", orchestrator.DefaultInterval)
	viper.SetDefault("orchestrator.workers", 1)
	viper.SetDefault("orchestrator.recover_on_start", true)
	viper.SetDefault("notifier.driver", "log")
	viper.SetDefault("kafka.topic", "transfer-events")

	return viper.ReadInConfig()
}
