package initialize

import (
	"context"
	"fmt"
	"net/http"

	"flyvemdm/backend/app/broker"
	"flyvemdm/backend/app/controllers"
	"flyvemdm/backend/app/db"
	"flyvemdm/backend/app/fcm"
	jwtutil "flyvemdm/backend/app/jwt"
	"flyvemdm/backend/app/middleware"
	"flyvemdm/backend/app/models"
	"flyvemdm/backend/app/mqtt"
	"flyvemdm/backend/app/notify"
	"flyvemdm/backend/app/services"
	"flyvemdm/backend/config"
	"flyvemdm/backend/global"
	"flyvemdm/backend/router"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

type App struct {
	Cfg    *config.Config
	DB     *gorm.DB
	Router http.Handler
	MQTT   *mqtt.Client
	Redis  *redis.Client

	Status *services.StatusService
	viper  *viper.Viper

	listener *mqtt.StatusListener
}

func Build(ctx context.Context, configPath string) (*App, error) {
	cfg, v, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	global.Config = *cfg
	SetupLogger(cfg.Log)
	log := global.Logger
	global.Transports.Set(cfg.MQTT.Enabled, cfg.FCM.Enabled)

	gdb, err := db.Connect(db.Config{
		Driver: cfg.DB.Driver, Host: cfg.DB.Host, Port: cfg.DB.Port,
		User: cfg.DB.User, Password: cfg.DB.Pass, DBName: cfg.DB.Name, Path: cfg.DB.Path,
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	global.Mdb = gdb
	if err := gdb.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	app := &App{Cfg: cfg, DB: gdb, viper: v}
	repos := services.NewRepos(gdb)

	var signals services.Signaler = services.NewLocalSignaler()
	if cfg.Redis.Enabled {
		app.Redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := app.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		global.Rdb = app.Redis
		signals = services.NewRedisSignaler(app.Redis, log)
	}

	// Transports are always built; the live flags decide whether they are used.
	app.MQTT = mqtt.NewClient(cfg.MQTT, log)
	middlewares := []broker.Middleware{mqtt.NewMiddleware(app.MQTT, cfg.MQTT.QoS, repos.Mqtt, log)}
	var pusher services.PushTester
	if cfg.FCM.Enabled || cfg.FCM.CredentialsFile != "" {
		conn, err := fcm.NewConnection(ctx, cfg.FCM)
		if err != nil {
			log.Warn().Err(err).Msg("fcm unavailable")
		} else {
			middlewares = append(middlewares, fcm.NewMiddleware(conn))
			pusher = conn
		}
	}
	notifier := notify.NewNotifier(global.Transports, repos.NotifyStore(), log, middlewares...)

	signer := &jwtutil.Signer{Secret: []byte(cfg.JWT.Secret), Issuer: cfg.JWT.Issuer, ExpMin: cfg.JWT.ExpMin}
	access := services.NewMqttAccessService(repos.Mqtt)
	agentSvc := services.NewAgentService(gdb, repos, access, notifier, log)
	userSvc := services.NewUserService(repos.Users)
	if err := userSvc.EnsureAdmin(cfg.Admin.Username, cfg.Admin.Password); err != nil {
		log.Warn().Err(err).Msg("cannot ensure admin account")
	}
	deps := services.EnrollmentDeps{
		Transports: global.Transports,
		Pusher:     pusher,
		Tokens:     signer,
		Access:     access,
		Agents:     agentSvc,
	}
	if cfg.Enrollment.CertSignerURL != "" {
		deps.Certs = services.NewHTTPCertSigner(cfg.Enrollment.CertSignerURL)
	}
	enrollSvc := services.NewEnrollmentService(gdb, repos, cfg.MQTT, cfg.Enrollment, deps, log)
	app.Status = services.NewStatusService(repos, agentSvc, nil, signals, log)
	app.listener = &mqtt.StatusListener{Sub: app.MQTT, QoS: cfg.MQTT.QoS, Handler: app.Status, Journal: repos.Mqtt, Log: log}
	poller := services.DefaultPoller()
	if cfg.Query.Interval > 0 && cfg.Query.Attempts > 0 {
		poller.Interval, poller.Attempts = cfg.Query.Interval, cfg.Query.Attempts
	}
	poller.Signals = signals
	querySvc := services.NewQueryService(repos, notifier, poller, log)
	inviteSvc := services.NewInvitationService(gdb, repos, cfg.Enrollment.InvitationLifetime, log)
	fleetSvc := services.NewFleetService(repos, log)
	taskSvc := services.NewTaskService(gdb, repos, notifier, log)
	deviceSvc := services.NewDeviceService(repos, agentSvc)
	mqttAuth := services.NewMosquittoAuthService(repos.Mqtt, cfg.MQTT.Username, cfg.MQTT.Password)

	mw := &middleware.Auth{Signer: signer}
	h := router.NewRouter(router.Controllers{
		HTTP:      controllers.NewHTTPController(),
		Auth:      controllers.NewAuthController(userSvc, signer),
		Admin:     controllers.NewAdminController(userSvc, inviteSvc, fleetSvc, taskSvc),
		Agents:    controllers.NewAgentController(agentSvc, querySvc, app.Status),
		Devices:   controllers.NewDeviceController(deviceSvc),
		Enroll:    controllers.NewEnrollController(enrollSvc),
		Mosquitto: controllers.NewMosquittoController(mqttAuth),
		MqttLog:   controllers.NewMqttLogController(services.NewMqttLogService(repos)),
	}, mw)
	app.Router = middleware.Logging(h)
	return app, nil
}

// Start subscribes to agent status messages and begins watching the
// configuration file for transport switches. The status listener starts as
// soon as MQTT is enabled, at boot or on a later reload.
func (a *App) Start(ctx context.Context) {
	log := global.Logger
	config.Watch(a.viper, global.Transports, func(cfg *config.Config) {
		log.Info().Bool("mqtt", cfg.MQTT.Enabled).Bool("fcm", cfg.FCM.Enabled).Msg("transport configuration reloaded")
		if cfg.MQTT.Enabled {
			a.listener.Start(ctx)
		}
	})
	if a.Cfg.MQTT.Enabled {
		a.listener.Start(ctx)
	}
}

func (a *App) Close() {
	if a.MQTT != nil {
		a.MQTT.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
