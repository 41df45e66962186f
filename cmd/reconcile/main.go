package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/congo-pay/walletd/internal/config"
	"github.com/congo-pay/walletd/internal/infra"
	"github.com/congo-pay/walletd/internal/ledger"
	"github.com/congo-pay/walletd/internal/logging"
)

func main() {
	apply := flag.Bool("apply", false, "store the verdict on each wallet instead of only reporting drift")
	walletID := flag.String("wallet", "", "reconcile a single wallet")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.AppName+"-reconcile")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := ledger.NewPostgresStore(db, ledger.PostgresConfig{
		UnitTimeout: cfg.UnitTimeout,
		LockTimeout: cfg.LockTimeout,
	})

	report, err := ledger.Sweep(ctx, store, *walletID, *apply)
	if err != nil {
		logger.Error("reconcile", "error", err, "checked", report.Checked)
		os.Exit(1)
	}

	for _, check := range report.Drifted {
		logger.Warn("wallet drift",
			"wallet_id", check.Wallet.ID,
			"stored", ledger.FormatAmount(check.Wallet.Balance),
			"expected", ledger.FormatAmount(check.Expected),
		)
	}
	logger.Info("reconciliation finished",
		"checked", report.Checked,
		"drifted", len(report.Drifted),
		"updated", report.Updated,
		"applied", *apply,
	)
	if len(report.Drifted) > 0 {
		os.Exit(2)
	}
}
