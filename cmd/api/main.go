package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/osiris-api/internal/application/electronic"
	"github.com/jhoicas/osiris-api/internal/application/inventory"
	"github.com/jhoicas/osiris-api/internal/application/purchases"
	"github.com/jhoicas/osiris-api/internal/application/sales"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
	"github.com/jhoicas/osiris-api/internal/infrastructure/cache"
	"github.com/jhoicas/osiris-api/internal/infrastructure/memory"
	infranotify "github.com/jhoicas/osiris-api/internal/infrastructure/notify"
	infrapdf "github.com/jhoicas/osiris-api/internal/infrastructure/pdf"
	"github.com/jhoicas/osiris-api/internal/infrastructure/postgres"
	"github.com/jhoicas/osiris-api/internal/infrastructure/scheduler"
	infrasri "github.com/jhoicas/osiris-api/internal/infrastructure/sri"
	"github.com/jhoicas/osiris-api/internal/infrastructure/storage"
	httpRouter "github.com/jhoicas/osiris-api/internal/interfaces/http"
	"github.com/jhoicas/osiris-api/pkg/config"
	"github.com/jhoicas/osiris-api/pkg/logger"
	"github.com/jhoicas/osiris-api/pkg/sri"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("db_driver", cfg.DB.Driver).
		Msg("iniciando aplicación")

	ctx := context.Background()

	// Persistencia: PostgreSQL o store en memoria (desarrollo y demos).
	var (
		txRunner repository.TxRunner
		repos    repository.Repos
	)
	switch cfg.DB.Driver {
	case config.DriverMemory:
		store := memory.NewStore()
		for _, t := range sri.TarifasIVA {
			store.PutTaxRate(entity.TaxRate{Kind: entity.TaxKindIVA, TaxCode: entity.SRITaxCodeIVA, RateCode: t.Codigo, Rate: t.Porcentaje, Description: t.Descripcion})
		}
		txRunner, repos = store, store.Repos()
		log.Warn().Msg("persistencia en memoria: los datos se pierden al reiniciar")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if cfg.DB.AutoSchema {
			if err := postgres.ApplySchema(ctx, pool); err != nil {
				log.Fatal().Err(err).Msg("aplicar esquema")
			}
		}
		txRunner, repos = postgres.NewTxRunner(pool), postgres.NewRepos(pool)
	}

	// Firma y canal SRI. Sin certificado se usa el gateway de desarrollo.
	xmlBuilder := infrasri.NewXMLBuilder()
	var (
		signer  electronic.Signer
		gateway electronic.Gateway
	)
	if cfg.SRI.DevGateway || cfg.SRI.CertPath == "" {
		signer = infrasri.NewUnsignedSigner(xmlBuilder)
		gateway = infrasri.NewDevGateway()
		log.Warn().Msg("SRI en modo desarrollo: los comprobantes se autorizan localmente sin firma")
	} else {
		cert, err := infrasri.LoadFromP12(cfg.SRI.CertPath, cfg.SRI.CertPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("cargar certificado de firma")
		}
		xades, err := infrasri.NewXAdESSigner(cert, xmlBuilder)
		if err != nil {
			log.Fatal().Err(err).Msg("firmador XAdES")
		}
		endpoints := infrasri.EndpointsFor(cfg.SRI.Ambiente)
		if cfg.SRI.RecepcionURL != "" {
			endpoints.Recepcion = cfg.SRI.RecepcionURL
		}
		if cfg.SRI.AutorizacionURL != "" {
			endpoints.Autorizacion = cfg.SRI.AutorizacionURL
		}
		signer = xades
		gateway = infrasri.NewSOAPGateway(infrasri.NewSOAPClient(endpoints, cfg.SRI.Timeout))
	}

	// Efectos de autorización: RIDE, archivo S3 y correo al receptor.
	var mailer electronic.Mailer = infranotify.NewLogMailer(log.Component("mailer"))
	if cfg.SMTP.Host != "" {
		mailer = infranotify.NewSMTPMailer(cfg.SMTP)
	}
	var archive electronic.Archive
	if cfg.Storage.Bucket != "" {
		s3Archive, err := storage.NewS3Archive(ctx, cfg.Storage, log.Zerolog())
		if err != nil {
			log.Fatal().Err(err).Msg("archivo S3")
		}
		if err := s3Archive.EnsureBucket(ctx); err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.Storage.Bucket).Msg("bucket de comprobantes")
		}
		archive = s3Archive
	}
	delivery := electronic.NewDeliveryHandler(infrapdf.NewMarotoRIDEGenerator(), mailer, archive, log.Zerolog())
	effects := scheduler.NewPool(cfg.Worker.PoolSize, log.Zerolog())

	queueCfg := electronic.QueueConfig{
		Issuer: electronic.Issuer{
			Emisor: sri.Emisor{
				RUC:                  cfg.SRI.RUC,
				RazonSocial:          cfg.SRI.RazonSocial,
				NombreComercial:      cfg.SRI.NombreComercial,
				DireccionMatriz:      cfg.SRI.DireccionMatriz,
				ObligadoContabilidad: cfg.SRI.ObligadoContabilidad,
			},
			Ambiente: cfg.SRI.Ambiente,
		},
		MaxAttempts:  cfg.SRI.MaxAttempts,
		LeaseTimeout: cfg.SRI.LeaseTimeout,
	}
	facturas := electronic.NewQueueService(txRunner, repos, electronic.FacturaBuilder{}, signer, gateway, effects, queueCfg, log.Zerolog()).
		WithAuthorizedHandler(delivery)
	retenciones := electronic.NewQueueService(txRunner, repos, electronic.RetencionBuilder{}, signer, gateway, effects, queueCfg, log.Zerolog()).
		WithAuthorizedHandler(delivery)
	orchestrator := electronic.NewOrchestrator(repos, log.Zerolog(), facturas, retenciones).WithBatchSize(cfg.Worker.BatchSize)

	movementUC := inventory.NewMovementUseCase(txRunner, repos, log.Zerolog())
	salesUC := sales.NewSalesUseCase(txRunner, repos, movementUC, orchestrator, sales.Config{
		Establishment: cfg.SRI.Establecimiento,
		EmissionPoint: cfg.SRI.PuntoEmision,
	}, log.Zerolog())
	purchasesUC := purchases.NewPurchasesUseCase(txRunner, repos, movementUC, orchestrator, purchases.Config{
		Establishment: cfg.SRI.Establecimiento,
		EmissionPoint: cfg.SRI.PuntoEmision,
	}, log.Zerolog())

	// Redis: idempotencia HTTP y candado de líder del barrido. Sin Redis, store local.
	var (
		idempotency cache.IdempotencyStore = cache.NewInMemoryIdempotencyStore()
		locker      scheduler.Locker
	)
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		idempotency = cache.NewRedisIdempotencyStore(rdb, "")
		locker = cache.NewRedisLocker(rdb)
	}

	worker := scheduler.NewSRIWorker(cfg.Worker.PollInterval, orchestrator, locker, log.Zerolog())
	if cfg.Worker.Enabled {
		worker.Start(ctx)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
		ErrorHandler: httpRouter.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(httpRouter.RequestLogger(log.Component("http")))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Inventory:      movementUC,
		Sales:          salesUC,
		Purchases:      purchasesUC,
		Electronic:     orchestrator,
		Idempotency:    idempotency,
		IdempotencyTTL: cfg.Redis.KeyTTL,
		JWTSecret:      cfg.JWT.Secret,
		JWTIssuer:      cfg.JWT.Issuer,
		ServiceName:    cfg.App.Name,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del worker SRI")
	}
	if err := effects.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("efectos de autorización pendientes sin terminar")
	}

	log.Info().Msg("aplicación detenida")
}
