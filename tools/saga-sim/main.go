// Command saga-sim runs the order, inventory, payment and notification
// services in one process over an in-memory broker and drives the order saga
// end to end.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/ordersaga/libs/config"
	"github.com/md-rashed-zaman/ordersaga/libs/runtime"
	paymentapp "github.com/md-rashed-zaman/ordersaga/services/payment-service/app"
)

func main() {
	var (
		gatewayMode = flag.String("gateway", config.String("PAYMENT_GATEWAY", "succeed"), "payment outcome: succeed, fail or random")
		ratio       = flag.Float64("ratio", 0.8, "success ratio for the random gateway")
		orders      = flag.Int("orders", 1, "orders to place")
		quantity    = flag.Int("quantity", 5, "units per order")
		price       = flag.String("price", "10.00", "unit price")
		stock       = flag.Int("stock", 100, "initial stock of the product")
		cancel      = flag.Bool("cancel", false, "cancel every order after its payment settled")
		cancelEarly = flag.Bool("cancel-early", false, "cancel every order right after placing it")
		duplicates  = flag.Bool("duplicates", false, "deliver every message twice")
		timeout     = flag.Duration("timeout", 10*time.Second, "how long to wait for sagas to settle")
		serve       = flag.String("serve", "", "serve the APIs on this address instead of running a scenario")
	)
	flag.Parse()

	logger := runtime.NewLogger("saga-sim")
	ctx, stop := runtime.SignalContext()
	defer stop()

	var gw paymentapp.Gateway
	switch *gatewayMode {
	case "succeed":
		gw = &paymentapp.FixedGateway{}
	case "fail":
		gw = &paymentapp.FixedGateway{Decline: true}
	case "random":
		gw = paymentapp.NewRandomGateway(*ratio)
	default:
		fatal(fmt.Sprintf("unknown gateway %q", *gatewayMode))
	}
	unitPrice, err := decimal.NewFromString(*price)
	if err != nil {
		fatal("invalid price: " + err.Error())
	}

	cluster := NewCluster(Options{Gateway: gw, Duplicates: *duplicates, Logger: logger})
	runCtx, cancelRun := context.WithCancel(ctx)
	wait := cluster.Start(runCtx)
	defer func() {
		cancelRun()
		wait()
	}()

	if *serve != "" {
		srv := &http.Server{Addr: *serve, Handler: cluster.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving simulator APIs", "addr", *serve)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
		return
	}

	report, err := cluster.Run(ctx, Scenario{
		ProductID:    "SKU1",
		InitialStock: *stock,
		CustomerID:   "C1",
		Orders:       *orders,
		Quantity:     *quantity,
		Price:        unitPrice,
		Cancel:       *cancel,
		CancelEarly:  *cancelEarly,
		Timeout:      *timeout,
	})
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
	if err != nil {
		fatal(err.Error())
	}
}

func fatal(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
