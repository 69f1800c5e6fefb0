// Package main is a terminal client of the unipay backend. It signs in,
// keeps the wallets and recent transactions of the user in sync and writes
// transfers and conversions.
//
// Usage:
//
//	dashboard [-config dir] balances
//	dashboard [-config dir] watch [-interval 5s]
//	dashboard [-config dir] send -to bob@example.com -amount 10 -currency USD [-message m] [-route r]
//	dashboard [-config dir] convert -from USD -to EUR -amount 100
//	dashboard [-config dir] open -currency BTC
//	dashboard [-config dir] whoami
//
// Notices go to the terminal when stdout is one and to the log otherwise.
// DASHBOARD_NOTICES=console|log overrides the choice.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-petr/unipay/internal/backendclient"
	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/internal/middleware"
	"github.com/go-petr/unipay/internal/notify"
	"github.com/go-petr/unipay/internal/sessionprovider"
	"github.com/go-petr/unipay/internal/walletsync"
	"github.com/go-petr/unipay/pkg/configpkg"
	"github.com/go-petr/unipay/pkg/currencypkg"
)

var errUsage = errors.New("usage: dashboard [-config dir] balances|watch|send|convert|open|whoami [flags]")

func main() {
	configDir := flag.String("config", "./configs", "directory of dashboard.env")
	flag.Parse()

	config, err := configpkg.LoadClient(*configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.CreateLogger(config.Environement)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, logger, flag.Args(), os.Stdout); err != nil {
		logger.Error().Err(err).Msg("dashboard")
		os.Exit(1)
	}
}

func run(ctx context.Context, config configpkg.ClientConfig, logger zerolog.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	client, err := backendclient.New(config.BackendURL, config.Timeout, logger)
	if err != nil {
		return err
	}

	notifier, err := newNotifier(config.Notices, logger, out)
	if err != nil {
		return err
	}

	provider := sessionprovider.New(client, logger)
	syncer := walletsync.New(client, notifier, logger)
	defer syncer.Close()

	provider.OnChange(func(ctx context.Context, id *domain.Identity) {
		if err := syncer.SetIdentity(ctx, id); err != nil {
			logger.Warn().Err(err).Msg("sync identity")
		}
	})

	if err := signIn(ctx, provider, config); err != nil {
		return err
	}

	defer func() {
		// ctx may already be cancelled by a signal.
		signOutCtx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		defer cancel()

		_ = provider.SignOut(signOutCtx)
	}()

	cmd, cmdArgs := args[0], args[1:]

	switch cmd {
	case "balances":
		render(out, syncer.Snapshot(), syncer.TotalValue())
		return nil
	case "watch":
		return watch(ctx, provider, syncer, cmdArgs, out)
	case "send":
		return send(ctx, syncer, cmdArgs)
	case "convert":
		return convert(ctx, syncer, cmdArgs)
	case "open":
		return open(ctx, client, provider.Current(), cmdArgs, out)
	case "whoami":
		return whoami(ctx, client, provider.Current(), out)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

// newNotifier picks the sink of wallet notices.
func newNotifier(mode string, logger zerolog.Logger, out io.Writer) (walletsync.Notifier, error) {
	switch mode {
	case configpkg.NoticesConsole:
		return notify.NewConsoleNotifier(out), nil
	case configpkg.NoticesLog:
		return notify.NewLogNotifier(logger), nil
	case configpkg.NoticesAuto, "":
		if f, ok := out.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
			return notify.NewConsoleNotifier(out), nil
		}

		return notify.NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unknown DASHBOARD_NOTICES %q", mode)
	}
}

// signIn signs in, or signs up when a full name is configured and the
// sign in is rejected.
func signIn(ctx context.Context, provider *sessionprovider.Provider, config configpkg.ClientConfig) error {
	if config.Email == "" || config.Password == "" {
		return errors.New("DASHBOARD_EMAIL and DASHBOARD_PASSWORD are required")
	}

	_, err := provider.SignIn(ctx, config.Email, config.Password)
	if err == nil {
		return nil
	}

	var backendErr *backendclient.Error
	if config.FullName == "" || !errors.As(err, &backendErr) {
		return err
	}

	_, err = provider.SignUp(ctx, config.Email, config.Password, config.FullName)

	return err
}

func watch(ctx context.Context, provider *sessionprovider.Provider, syncer *walletsync.Syncer, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	interval := fs.Duration("interval", 5*time.Second, "render interval")

	if err := fs.Parse(args); err != nil {
		return err
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	render(out, syncer.Snapshot(), syncer.TotalValue())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := provider.Refresh(ctx); err != nil {
				return err
			}

			render(out, syncer.Snapshot(), syncer.TotalValue())
		}
	}
}

func send(ctx context.Context, syncer *walletsync.Syncer, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	to := fs.String("to", "", "recipient")
	amount := fs.String("amount", "", "amount")
	currency := fs.String("currency", "USD", "currency code")
	message := fs.String("message", "", "message to the recipient")
	route := fs.String("route", "", "preferred route")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *to == "" {
		return errors.New("send: -to is required")
	}

	value, err := currencypkg.ParseAmount(*amount)
	if err != nil {
		return fmt.Errorf("send: invalid amount %q: %w", *amount, err)
	}

	_, err = syncer.InitiateTransfer(ctx, walletsync.TransferRequest{
		Recipient: *to,
		Amount:    value,
		Currency:  *currency,
		Message:   *message,
		Route:     *route,
	})

	return err
}

func convert(ctx context.Context, syncer *walletsync.Syncer, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	from := fs.String("from", "", "source currency code")
	to := fs.String("to", "", "destination currency code")
	amount := fs.String("amount", "", "amount of the source currency")

	if err := fs.Parse(args); err != nil {
		return err
	}

	value, err := currencypkg.ParseAmount(*amount)
	if err != nil {
		return fmt.Errorf("convert: invalid amount %q: %w", *amount, err)
	}

	_, err = syncer.InitiateConversion(ctx, *from, *to, value)

	return err
}

// open opens an empty balance in a new currency. The change feed brings it
// into the synced state.
func open(ctx context.Context, client *backendclient.Client, id *domain.Identity, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("open", flag.ContinueOnError)
	currency := fs.String("currency", "", "currency code")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *currency == "" {
		return errors.New("open: -currency is required")
	}

	balance, err := client.OpenBalance(ctx, id.AccessToken, *currency)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "opened %s balance %s\n", balance.CurrencyCode, balance.ID)

	return nil
}

func whoami(ctx context.Context, client *backendclient.Client, id *domain.Identity, out io.Writer) error {
	user, err := client.Me(ctx, id.AccessToken)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s <%s> %s\n", user.FullName, user.Email, user.ID)

	return nil
}
