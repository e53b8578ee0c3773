package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payverify/config"
	"payverify/helper"
	"payverify/lib"
	"payverify/poller"

	"github.com/spf13/cobra"
)

var (
	errNotConfirmed  = errors.New("payment not confirmed")
	errCancelled     = errors.New("verification cancelled")
	errInvalidAmount = errors.New("amount must not be negative")
)

type options struct {
	method      string
	phone       string
	amount      float64
	baseURL     string
	token       string
	interval    time.Duration
	callTimeout time.Duration
	ceiling     time.Duration
	navigate    time.Duration
	maxErrors   int
	logLevel    string
}

func main() {
	config.SetupEnvFile()
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(settings).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(settings config.Settings) *cobra.Command {
	opts := options{
		baseURL:     settings.VerifyBaseURL,
		token:       settings.VerifyToken,
		interval:    settings.Poller.Interval,
		callTimeout: settings.Poller.CallTimeout,
		ceiling:     settings.Poller.Ceiling,
		navigate:    settings.Poller.NavigateDelay,
		maxErrors:   settings.Poller.MaxConsecutiveErrors,
		logLevel:    settings.LogLevel,
	}

	cmd := &cobra.Command{
		Use:          "verify <transaction-id>",
		Short:        "Wait for a mobile-money payment to be confirmed",
		Long:         "Polls the verify endpoint until the payment succeeds, fails or the wait times out. Exits 0 only on success.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			helper.SetupLogger(opts.logLevel, cmd.ErrOrStderr())
			if cmd.Flags().Changed("interval") {
				// the poller derives it from the interval
				opts.callTimeout = 0
			}
			return run(cmd.Context(), cmd.OutOrStdout(), args[0], opts, settings)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.method, "method", "m", string(poller.MethodOrangeMoney), "payment method (orange_money, mtn_momo)")
	f.StringVarP(&opts.phone, "phone", "p", "", "payer phone number")
	f.Float64VarP(&opts.amount, "amount", "a", 0, "amount in XAF")
	f.StringVar(&opts.baseURL, "base-url", opts.baseURL, "payments API base url")
	f.StringVar(&opts.token, "token", opts.token, "bearer token for the payments API")
	f.DurationVar(&opts.interval, "interval", opts.interval, "time between verify calls")
	f.DurationVar(&opts.ceiling, "timeout", opts.ceiling, "give up after this long")
	f.DurationVar(&opts.navigate, "navigate-delay", opts.navigate, "pause between success and exit")
	f.IntVar(&opts.maxErrors, "max-errors", opts.maxErrors, "fail after this many consecutive verify errors, 0 to disable")
	f.StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level")
	return cmd
}

func run(ctx context.Context, out io.Writer, transactionID string, opts options, settings config.Settings) error {
	method, err := poller.ParsePaymentMethod(opts.method)
	if err != nil {
		return err
	}
	if opts.amount < 0 {
		return fmt.Errorf("%w: %v", errInvalidAmount, opts.amount)
	}

	client := lib.NewVerifyClient(lib.VerifyClientConfig{
		BaseURL:      opts.baseURL,
		Token:        opts.token,
		TokenURL:     settings.VerifyTokenURL,
		ClientID:     settings.VerifyClientID,
		ClientSecret: settings.VerifyClientSecret,
	})

	lastMessage := ""
	p, err := poller.New(poller.Request{
		TransactionID: transactionID,
		PaymentMethod: method,
		PhoneNumber:   helper.NormalizeMSISDN(opts.phone, false),
		Amount:        opts.amount,
	}, client, poller.Config{
		Interval:             opts.interval,
		Ceiling:              opts.ceiling,
		NavigateDelay:        opts.navigate,
		CallTimeout:          opts.callTimeout,
		WarnAfterErrors:      settings.Poller.WarnAfterErrors,
		MaxConsecutiveErrors: opts.maxErrors,
	}, poller.Hooks{
		OnChange: func(s poller.Snapshot) {
			if s.Message == lastMessage {
				return
			}
			lastMessage = s.Message
			fmt.Fprintf(out, "[%5.1fs] %s: %s\n", s.Elapsed.Seconds(), s.State, s.Message)
		},
		OnNavigate: func(s poller.Snapshot) {
			fmt.Fprintf(out, "payment %s confirmed after %d checks\n", s.TransactionID, s.PollingCount)
		},
	})
	if err != nil {
		return err
	}

	amount := ""
	if opts.amount > 0 {
		amount = " for " + helper.FormatCurrencyXAF(uint(opts.amount))
	}
	fmt.Fprintf(out, "Confirm the %s prompt on %s%s\n", method.DisplayName(), opts.phone, amount)

	if err := p.Start(ctx); err != nil {
		return err
	}
	<-p.Done()

	s := p.Snapshot()
	switch {
	case s.State == poller.Success:
		return nil
	case s.State == poller.Failed:
		return fmt.Errorf("%w: %s", errNotConfirmed, s.Reason)
	default:
		return errCancelled
	}
}
