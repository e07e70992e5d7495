// Command kart drives a purchasing funnel from the terminal. Cart and basket
// survive between invocations through the configured storage backend.
//
//	kart [-name=value ...] <command> [args]
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	appkg "github.com/xenking/kart-funnel/internal/app"
	"github.com/xenking/kart-funnel/internal/notify"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		flags, args := splitArgs(os.Args[1:])
		cfg, err := appkg.LoadConfig(flags)
		if err != nil {
			return err
		}

		ctx = zctx.Base(ctx, lg)
		a, err := appkg.New(ctx, cfg, appkg.Deps{
			Notifier: notify.Multi(notify.Log{}, notify.Func(func(_ context.Context, n notify.Notification) {
				_, _ = fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Level, n.Message)
			})),
			TracerProvider: m.TracerProvider(),
			MeterProvider:  m.MeterProvider(),
		})
		if err != nil {
			return err
		}
		defer a.Close()

		return run(ctx, a.Session, os.Stdout, args)
	})
}

// splitArgs separates leading configuration flags from the command. Flags that
// take a value must use the -name=value form.
func splitArgs(args []string) (flags, rest []string) {
	for i, arg := range args {
		if arg == "--" {
			return args[:i], args[i+1:]
		}
		if !strings.HasPrefix(arg, "-") {
			return args[:i], args[i:]
		}
	}
	return args, nil
}
