package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"boardsync/api"
	"boardsync/domain"
	"boardsync/internal/consts"
	"boardsync/realtime"
	"boardsync/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	boardsTable := os.Getenv("BOARDS_TABLE")
	cardsTable := os.Getenv("CARDS_TABLE")
	tasksTable := os.Getenv("TASKS_TABLE")
	notificationQueue := os.Getenv("NOTIFICATION_QUEUE")
	if connStr == "" || boardsTable == "" || cardsTable == "" || tasksTable == "" || notificationQueue == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr, boardsTable, cardsTable, tasksTable)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	queue, err := storage.NewQueue(connStr, notificationQueue)
	if err != nil {
		log.Fatalf("notification queue: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		parts := strings.Split(redisConn, ",")
		redisOpts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				redisOpts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					redisOpts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	rc := redis.NewClient(redisOpts)

	cacheTTL := 5 * time.Minute
	if v := os.Getenv("BOARD_VIEW_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid BOARD_VIEW_CACHE_TTL: %v", err)
		}
		cacheTTL = d
	}
	var st domain.Storage = storage.NewCache(store, rc, cacheTTL)

	testMode := os.Getenv("AUTH_TEST_MODE") == "1"
	var auth *api.Auth
	if testMode {
		auth = api.NewAuth(nil, "", "")
	} else {
		jwtAudience := os.Getenv("AUTH0_AUDIENCE")
		authDomain := os.Getenv("AUTH0_DOMAIN")
		if jwtAudience == "" || authDomain == "" {
			log.Fatal("missing Auth0 config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", authDomain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, jwtAudience, "https://"+authDomain+"/")
	}

	logger := log.New()
	hub := realtime.NewHub(logger)

	// Mutations publish through the bridge so every replica's hub, this one
	// included, fans events out to its local connections.
	bridge := realtime.NewBridge(rc, consts.EventsChannel, logger)
	go bridge.Run(context.Background(), hub)

	boards := domain.NewBoardService(st, queue)
	cards := domain.NewCardService(st, bridge)
	tasks := domain.NewTaskService(st, bridge, queue)

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	if debug, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && debug {
		pprof.Register(e)
	}

	api.Register(e, boards, cards, tasks, auth, logger)
	e.GET("/ws", realtime.Handler(hub, auth, logger))

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
