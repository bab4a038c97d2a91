package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shaiso/Flowkit/internal/client"
	"github.com/shaiso/Flowkit/internal/mq"
	"github.com/shaiso/Flowkit/internal/repo"
	"github.com/shaiso/Flowkit/internal/store"
	"github.com/shaiso/Flowkit/internal/telemetry"
)

// Ключи настроек. Каждый читается из флага --<key> или FLOWKIT_<KEY>.
const (
	keyAPIURL   = "api-url"
	keyToken    = "token"
	keyRedisURL = "redis-url"
	keyDBURL    = "db-url"
	keyAMQPURL  = "amqp-url"
	keyJSON     = "json"
	keyTimeout  = "http-timeout"
)

// DefaultAPIURL — адрес оркестратора по умолчанию.
const DefaultAPIURL = "http://localhost:8081"

// Settings — итоговая конфигурация CLI.
type Settings struct {
	APIURL      string
	Token       string
	RedisURL    string
	DBURL       string
	AMQPURL     string
	JSON        bool
	HTTPTimeout time.Duration
}

// App связывает cobra-команды с настройками и клиентами.
// Клиенты создаются лениво, после разбора флагов.
type App struct {
	root *cobra.Command
	v    *viper.Viper
}

// NewRootCmd собирает корневую команду flowctl.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "flowctl",
		Short:         "Flowkit CLI: declare, run and inspect workflows",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	v := viper.New()
	v.SetEnvPrefix("FLOWKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags := root.PersistentFlags()
	flags.String(keyAPIURL, DefaultAPIURL, "Orchestrator API URL")
	flags.String(keyToken, "", "API bearer token")
	flags.String(keyRedisURL, "", "State store URL (redis://...)")
	flags.String(keyDBURL, repo.DefaultDSN, "Archive database URL")
	flags.String(keyAMQPURL, mq.DefaultURL(), "Broker URL for events")
	flags.Bool(keyJSON, false, "Output in JSON format")
	flags.Duration(keyTimeout, client.DefaultTimeout, "HTTP request timeout")
	_ = v.BindPFlags(flags)

	app := &App{root: root, v: v}
	root.AddCommand(
		NewWorkflowCmd(app),
		NewAgentCmd(app),
		NewTriggerCmd(app),
		NewEventsCmd(app),
	)
	return root
}

// Settings читает настройки: флаг, затем окружение, затем значение по умолчанию.
func (a *App) Settings() Settings {
	return Settings{
		APIURL:      a.v.GetString(keyAPIURL),
		Token:       a.v.GetString(keyToken),
		RedisURL:    a.v.GetString(keyRedisURL),
		DBURL:       a.v.GetString(keyDBURL),
		AMQPURL:     a.v.GetString(keyAMQPURL),
		JSON:        a.v.GetBool(keyJSON),
		HTTPTimeout: a.v.GetDuration(keyTimeout),
	}
}

// Client создаёт HTTP-клиент оркестратора.
func (a *App) Client() *client.Client {
	s := a.Settings()
	return client.New(s.APIURL,
		client.WithToken(s.Token),
		client.WithTimeout(s.HTTPTimeout),
		client.WithLogger(a.Logger()),
	)
}

// Output создаёт вывод поверх потоков корневой команды.
func (a *App) Output() *Output {
	return NewOutputTo(a.Settings().JSON, a.root.OutOrStdout(), a.root.ErrOrStderr())
}

// Logger пишет диагностику в stderr, уровень из LOG_LEVEL.
func (a *App) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(a.root.ErrOrStderr(), &slog.HandlerOptions{Level: telemetry.LogLevel()}))
}

// Store подключается к хранилищу состояния. nil без --redis-url.
func (a *App) Store(ctx context.Context) (*store.Store, error) {
	url := a.Settings().RedisURL
	if url == "" {
		return nil, nil
	}
	rdb, err := store.ConnectURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect state store: %w", err)
	}
	return store.New(rdb, store.WithLogger(a.Logger())), nil
}
