package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanpawarit/travel-concierge/agent/agents/assistant"
	"github.com/tanpawarit/travel-concierge/agent/agents/concierge"
	llmx "github.com/tanpawarit/travel-concierge/agent/llm"
	promptx "github.com/tanpawarit/travel-concierge/agent/prompt"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
	toolx "github.com/tanpawarit/travel-concierge/agent/tool"
	configx "github.com/tanpawarit/travel-concierge/pkg/config"
	logx "github.com/tanpawarit/travel-concierge/pkg/logger"
	openrouterx "github.com/tanpawarit/travel-concierge/pkg/openrouter"
	qstashx "github.com/tanpawarit/travel-concierge/pkg/qstash"
)

type AppConfig struct {
	Store       string        `split_words:"true" default:"upstash"`
	Locker      string        `split_words:"true" default:"local"`
	TurnTimeout time.Duration `split_words:"true" default:"90s"`
}

var (
	envFile     string
	sessionID   string
	userID      string
	userName    string
	rootCommand = &cobra.Command{
		Use:   "concierge",
		Short: "Multi-agent travel concierge",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configx.SetEnvFile(envFile)
			logx.Init(*configx.MustNew[logx.Config]("LOG"))
		},
	}
	chatCommand = &cobra.Command{
		Use:   "chat",
		Short: "Talk to the concierge from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	migrateCommand = &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres conversation table",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := statex.NewPostgresStore(*configx.MustNew[statex.PostgresConfig]("POSTGRES"))
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			log.Info().Msg("conversation table ready")
			return nil
		},
	}
)

func init() {
	rootCommand.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file")
	chatCommand.Flags().StringVar(&sessionID, "session", "", "session id to resume (default: new session)")
	chatCommand.Flags().StringVar(&userID, "user-id", "", "user id passed to the agents")
	chatCommand.Flags().StringVar(&userName, "user-name", "", "user name passed to the agents")
	rootCommand.AddCommand(chatCommand, migrateCommand)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runChat(ctx context.Context, in io.Reader, out io.Writer) error {
	appCfg := configx.MustNew[AppConfig]("APP")

	svc, cleanup, err := buildConcierge(ctx, *appCfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if strings.TrimSpace(sessionID) == "" {
		sessionID = uuid.NewString()
	}
	userContext := map[string]any{}
	if userID != "" {
		userContext["user_id"] = userID
	}
	if userName != "" {
		userContext["name"] = userName
	}

	fmt.Fprintf(out, "session %s (Ctrl+D to quit)\n", sessionID)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		turnCtx, cancel := context.WithTimeout(ctx, appCfg.TurnTimeout)
		reply, err := svc.ProcessTurn(turnCtx, sessionID, text, userContext)
		cancel()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error().Err(err).Str("session_id", sessionID).Msg("turn failed")
			continue
		}
		fmt.Fprintln(out, reply)
	}
}

func buildConcierge(ctx context.Context, appCfg AppConfig) (*concierge.Concierge, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn().Err(err).Msg("shutdown")
			}
		}
	}
	fail := func(err error) (*concierge.Concierge, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		return fail(err)
	}

	catalog, err := buildCatalog(*llmCfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, catalog.Close)
	if err := catalog.Connect(ctx); err != nil {
		return fail(err)
	}

	prompts, err := promptx.LoadPromptSet()
	if err != nil {
		return fail(err)
	}
	registry, err := assistant.NewRegistry(ctx, prompts, assistant.OpenRouterModels(*llmCfg), catalog, time.Now)
	if err != nil {
		return fail(err)
	}

	store, closeStore, err := buildStore(appCfg.Store)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeStore)

	opts := []concierge.Option{}
	if appCfg.Locker == "redis" {
		locker := statex.NewRedisLocker(*configx.MustNew[statex.RedisLockConfig]("REDIS_LOCK"))
		closers = append(closers, locker.Close)
		opts = append(opts, concierge.WithLocker(locker))
	}

	svc, err := concierge.New(store, registry, *configx.MustNew[concierge.Config]("CONCIERGE"), opts...)
	if err != nil {
		return fail(err)
	}
	return svc, cleanup, nil
}

func buildCatalog(llmCfg llmx.Config) (*toolx.Catalog, error) {
	provider, err := toolx.NewHTTPProvider(*configx.MustNew[toolx.ProviderConfig]("PROVIDER"))
	if err != nil {
		return nil, err
	}

	embedCfg, embedModel := llmCfg.Embedding()
	client, err := openrouterx.NewClient(embedCfg)
	if err != nil {
		return nil, err
	}
	policies, err := toolx.LoadPolicies()
	if err != nil {
		return nil, err
	}
	kb := toolx.NewKnowledgeBase(toolx.NewOpenAIEmbedder(client, embedModel), policies)

	notifier, err := qstashx.NewClient(*configx.MustNew[qstashx.Config]("QSTASH"))
	if err != nil {
		return nil, err
	}

	return toolx.NewCatalog(
		toolx.WithProvider(provider),
		toolx.WithKnowledgeBase(kb),
		toolx.WithNotifier(notifier),
	), nil
}

func buildStore(kind string) (statex.Store, func() error, error) {
	switch kind {
	case "postgres":
		store, err := statex.NewPostgresStore(*configx.MustNew[statex.PostgresConfig]("POSTGRES"))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "upstash", "":
		store, err := statex.NewUpstashRedisStore(*configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS"))
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown state store %q", kind)
	}
}
