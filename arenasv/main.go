package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/profiler"
	"github.com/caarlos0/env"
	"github.com/jmoiron/sqlx"
	"github.com/tommy351/zap-stackdriver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

var (
	// This will be overwritten via ldflags.
	arenasvVersion  string
	arenasvRevision string
)

var (
	conf Config

	cprof    = flag.Int("cprof", 0, "0: disable cloud profiler, 1: enable cloud profiler, 2: also enable mtx profile")
	prodlog  = flag.Bool("prodlog", false, "use production logging mode")
	loglevel = flag.Int("v", 2, "logging level. 1:error, 2:info, 3:debug")
)

var logger *zap.Logger

type Config struct {
	Addr       string `env:"ARENASV_ADDR" envDefault:":50000"`
	PortRange  int    `env:"ARENASV_PORT_RANGE" envDefault:"100"`
	StatusAddr string `env:"ARENASV_STATUS_ADDR" envDefault:""`
	TickMs     int    `env:"ARENASV_TICK_MS" envDefault:"100"`

	UserStore string `env:"ARENASV_USER_STORE" envDefault:"file"`
	UserFile  string `env:"ARENASV_USER_FILE" envDefault:"users.txt"`
	DBName    string `env:"ARENASV_DB_NAME" envDefault:"arenasv.db"`

	GCPProjectID string `env:"ARENASV_GCP_PROJECT_ID" envDefault:""`
	GCPKeyPath   string `env:"ARENASV_GCP_KEY_PATH" envDefault:""`
}

func printHeader() {
	fmt.Println("   ==========================================")
	fmt.Println("    arenasv - grid arena shooter game server.")
	fmt.Printf("    Version: %v (%v)\n", arenasvVersion, arenasvRevision)
	fmt.Println("   ==========================================")
}

func printUsage() {
	fmt.Print(`
Usage: arenasv <Flags...> [serve, initdb]

  serve: Serve the game server.
    The server binds ARENASV_ADDR. When the port is taken the next
    ARENASV_PORT_RANGE ports are tried in order.

  initdb: Initialize the registered user store.
    Note that if the store already exists it will be permanently deleted.

Flags:

`)
	flag.PrintDefaults()
}

func loadConfig() {
	var c Config
	if err := env.Parse(&c); err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}
	if c.TickMs <= 0 {
		logger.Fatal("ARENASV_TICK_MS must be positive", zap.Int("tick_ms", c.TickMs))
	}

	logger.Info("config loaded", zap.Any("config", c))
	conf = c
}

func prepareOption(command string) {
	// google cloud profiler
	if 1 <= *cprof {
		cfg := profiler.Config{
			Service:        fmt.Sprintf("arenasv-%s", command),
			ServiceVersion: arenasvVersion,
			ProjectID:      conf.GCPProjectID,
		}
		if 2 <= *cprof {
			cfg.MutexProfiling = true
		}
		if err := profiler.Start(cfg, option.WithCredentialsFile(conf.GCPKeyPath)); err != nil {
			logger.Error("failed to start cloud profiler", zap.Error(err), zap.Any("cfg", cfg))
		}
		logger.Info("profiler started")
	}
}

func prepareDB() {
	switch conf.UserStore {
	case "sqlite":
		conn, err := sqlx.Open("sqlite3", conf.DBName)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defaultdb = SQLiteDB{DB: conn}
	case "file":
		defaultdb = NewFileDB(conf.UserFile)
	default:
		logger.Fatal("unknown user store", zap.String("store", conf.UserStore))
	}
}

func storePath() string {
	if conf.UserStore == "sqlite" {
		return conf.DBName
	}
	return conf.UserFile
}

func mainServe() {
	prepareDB()
	if err := getDB().Init(); err != nil {
		logger.Fatal("failed to init user store", zap.Error(err))
	}

	sv := NewServer()
	sv.tick = time.Duration(conf.TickMs) * time.Millisecond

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sv.ListenAndServe(ctx, conf.Addr, conf.PortRange)
	})

	if conf.StatusAddr != "" {
		hs := &http.Server{Addr: conf.StatusAddr, Handler: sv.HTTPHandler()}
		g.Go(func() error {
			err := hs.ListenAndServe()
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-ctx.Done()
			return hs.Close()
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
		sv.Quit()
		os.Exit(1)
	}
}

func prepareLogger() {
	var err error
	var zapConfig zap.Config

	if *prodlog {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig = stackdriver.EncoderConfig
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.Encoding = "console"
	}

	switch *loglevel {
	case 0, 1:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	case 2:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case 3:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	logger, err = zapConfig.Build()
	if err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}

	if *prodlog {
		logger = logger.With(
			zap.String("arenasv_version", arenasvVersion),
			zap.String("arenasv_revision", arenasvRevision))
	}
}

func main() {
	printHeader()
	flag.Parse()

	prepareLogger()
	defer logger.Sync()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	loadConfig()

	command := args[0]
	prepareOption(command)

	switch command {
	case "serve":
		mainServe()
	case "initdb":
		os.Remove(storePath())
		prepareDB()
		if err := getDB().Init(); err != nil {
			logger.Fatal("failed to init user store", zap.Error(err))
		}
	default:
		printUsage()
		os.Exit(1)
	}
}
