package main

import (
	"context"
	"flag"
	"os/signal"
	"os/user"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/MixinNetwork/allowance/api"
	"github.com/MixinNetwork/allowance/gateway"
	"github.com/MixinNetwork/allowance/ledger"
	"github.com/MixinNetwork/allowance/store"
	"github.com/MixinNetwork/mixin/logger"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bp := flag.String("d", "~/.mixin/allowance/data", "database directory path")
	cp := flag.String("c", "~/.mixin/allowance/config.toml", "configuration file path")
	flag.Parse()

	conf, err := ledger.Setup(expandHome(*cp))
	if err != nil {
		panic(err)
	}

	db, err := store.OpenBadger(ctx, expandHome(*bp))
	if err != nil {
		panic(err)
	}
	defer db.Close()

	sender, err := NewMixinSender(ctx, conf)
	if err != nil {
		panic(err)
	}
	gw := gateway.NewClient(gateway.NewHTTPTransport())
	l, err := ledger.Build(ctx, db, gw, sender, conf)
	if err != nil {
		panic(err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.Run(ctx)
	})
	g.Go(func() error {
		return api.NewServer(l).Run(ctx, conf.API.Listen)
	})
	err = g.Wait()
	if err != nil {
		logger.Printf("main => %v\n", err)
	}
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	usr, _ := user.Current()
	return filepath.Join(usr.HomeDir, p[2:])
}
