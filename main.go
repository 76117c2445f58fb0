package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	pipelinex "github.com/shoptalk-ai/shoptalk/agent/agents/pipeline"
	capabilityx "github.com/shoptalk-ai/shoptalk/agent/capability"
	queuex "github.com/shoptalk-ai/shoptalk/agent/queue"
	retrievalx "github.com/shoptalk-ai/shoptalk/agent/retrieval"
	routerx "github.com/shoptalk-ai/shoptalk/agent/router"
	specialistx "github.com/shoptalk-ai/shoptalk/agent/specialist"
	storex "github.com/shoptalk-ai/shoptalk/agent/store"
	configx "github.com/shoptalk-ai/shoptalk/pkg/config"
	embeddingx "github.com/shoptalk-ai/shoptalk/pkg/embedding"
	_ "github.com/shoptalk-ai/shoptalk/pkg/logger/autoload"
	openrouterx "github.com/shoptalk-ai/shoptalk/pkg/openrouter"
	vectordbx "github.com/shoptalk-ai/shoptalk/pkg/vectordb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storeCfg := configx.MustNew[storex.Config]("DB")
	store, err := storex.New(*storeCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()

	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	openRouterClient := openrouterx.NewClient(*openRouterCfg)
	if openRouterClient == nil {
		log.Fatal().Msg("initialize openrouter client")
	}

	embedder, err := embeddingx.NewOpenAIEmbedder(openRouterClient, *configx.MustNew[embeddingx.Config]("EMBEDDING"))
	if err != nil {
		log.Fatal().Err(err).Msg("initialize embedder")
	}

	index := vectordbx.MustNew(*configx.MustNew[vectordbx.Config]("VECTORDB"))

	engine, err := retrievalx.NewEngine(*configx.MustNew[retrievalx.Config]("RETRIEVAL"), embedder, index, store)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize retrieval engine")
	}

	gateway, err := capabilityx.NewGateway(engine, store, store, store)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize capability gateway")
	}

	registry, err := specialistx.NewRegistry(ctx, *openRouterCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize specialist registry")
	}

	queue := queuex.New(*configx.MustNew[queuex.Config]("QUEUE"))
	router := routerx.New(*configx.MustNew[routerx.Config]("ROUTER"))

	pipeline, err := pipelinex.New(
		queue,
		router,
		registry,
		gateway,
		store,
		store,
		pipelinex.LogSink{},
		*configx.MustNew[pipelinex.Config]("PIPELINE"),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize pipeline")
	}

	log.Info().Msg("pipeline running")
	if err := pipeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("pipeline stopped")
	}
	log.Info().Msg("pipeline stopped")
}
