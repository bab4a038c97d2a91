// flowctl — инструмент командной строки Flowkit.
//
// Использование:
//
//	flowctl [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	workflow  Описание, запуск и просмотр workflows
//	agent     Управление агентами
//	trigger   Триггеры запуска
//	events    Поток исходов tasks из брокера
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Flowkit/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCmd(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
