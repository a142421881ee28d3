package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"secretwolf/config"
	"secretwolf/crypto"
	"secretwolf/game"
	"secretwolf/logger"
	"secretwolf/metrics"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(ctx *gin.Context) { ctx.String(http.StatusOK, "healthy") })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Origin",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger.Setup(cfg.GinMode == "release")
	gin.SetMode(cfg.GinMode)

	tokenManager := crypto.NewTokenManager(cfg.TokenKey, time.Hour*2)
	prompts := game.NewPromptProvider()

	idGen := game.NewIdGen()
	tickerGen := game.NewTickerGen()
	lobby := game.NewLobby(&idGen, tickerGen, prompts, tokenManager)

	lobbyStarted := make(chan struct{})
	go lobby.LobbyActor(lobbyStarted)
	<-lobbyStarted

	r := CreateServer(cfg.AllowedOrigins)

	gameHandler := game.NewGameHandler(lobby, prompts, tokenManager, tokenManager, cfg.AllowedOrigins)
	{
		gameGroup := r.Group("/game")
		gameGroup.GET("/create", gameHandler.CreateRoomHandler)
		gameGroup.GET("/join/:roomid", gameHandler.JoinRoomHandler)
		gameGroup.GET("/auto", gameHandler.AutoMatchHandler)
	}

	log.Info().Str("addr", cfg.Addr).Msg("api listening")
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatal().Err(err).Msg("couldn't start server")
	}
}
