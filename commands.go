package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/geotrust-match/matchnode/pkg/contract"
	"github.com/geotrust-match/matchnode/pkg/discovery"
	"github.com/geotrust-match/matchnode/pkg/feed"
	"github.com/geotrust-match/matchnode/pkg/policy"
	"github.com/geotrust-match/matchnode/pkg/typedvalue"
)

const feedEndpoint = "/ws"

var watchCmd = &cli.Command{
	Name:  "watch",
	Usage: "Discover open sessions continuously and push them to websocket clients",
	Flags: []cli.Flag{
		&cli.UintFlag{
			Name:  "current",
			Usage: "session id to track as the caller's current session",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		n, err := newNode(ctx)
		if err != nil {
			return err
		}
		defer n.Close()

		engine := discovery.NewEngine(n.geotrust, discovery.Config{Interval: n.cfg.Env.PollInterval},
			discovery.WithLogger(n.logger),
			discovery.WithMetrics(n.metrics))
		if cctx.IsSet("current") {
			engine.SetCurrent(uint32(cctx.Uint("current")))
		}

		hub, err := feed.NewHub(feed.Config{Source: engine, Logger: n.logger, Metrics: n.metrics})
		if err != nil {
			return err
		}
		snapshots, unsubscribe := engine.Subscribe()
		defer unsubscribe()
		go hub.Forward(ctx, snapshots)

		feedMux := http.NewServeMux()
		feedMux.Handle(feedEndpoint, hub)
		feedServer := &http.Server{Addr: n.cfg.Env.FeedAddr, Handler: feedMux}

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: n.cfg.Env.MetricsAddr, Handler: metricsMux}

		for name, srv := range map[string]*http.Server{"feed": feedServer, "metrics": metricsServer} {
			go func() {
				n.logger.Info("server listening", "server", name, "listenAddr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					n.logger.Error("server failure", "server", name, "error", err)
					stop()
				}
			}()
		}

		go engine.Run(ctx) // nolint:errcheck
		<-ctx.Done()
		n.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for name, srv := range map[string]*http.Server{"feed": feedServer, "metrics": metricsServer} {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				n.logger.Error("failed to shut down server", "server", name, "error", err)
			}
		}
		n.logger.Info("shutdown complete")
		return nil
	},
}

var sessionCmd = &cli.Command{
	Name:      "session",
	Usage:     "Show one session",
	ArgsUsage: "<id>",
	Action: func(cctx *cli.Context) error {
		id, err := sessionIDArg(cctx)
		if err != nil {
			return err
		}
		n, err := newNode(cctx.Context)
		if err != nil {
			return err
		}
		defer n.Close()

		s, err := n.geotrust.GetSession(cctx.Context, id)
		if err != nil {
			return describe(err)
		}
		if s == nil {
			fmt.Fprintf(cctx.App.Writer, "session %d not found\n", id) // nolint:errcheck
			return nil
		}
		renderSessions(cctx.App.Writer, []contract.Session{*s})
		return nil
	},
}

var sessionsCmd = &cli.Command{
	Name:  "sessions",
	Usage: "Run one discovery pass and list open sessions",
	Action: func(cctx *cli.Context) error {
		n, err := newNode(cctx.Context)
		if err != nil {
			return err
		}
		defer n.Close()

		engine := discovery.NewEngine(n.geotrust, discovery.Config{}, discovery.WithLogger(n.logger), discovery.WithMetrics(n.metrics))
		open, ok := engine.Poll(cctx.Context)
		if !ok {
			return fmt.Errorf("discovery pass did not complete")
		}
		renderSessions(cctx.App.Writer, open)
		return nil
	},
}

var policyCmd = &cli.Command{
	Name:      "policy",
	Usage:     "Show the country policy, or check the given countries against it",
	ArgsUsage: "[code...]",
	Action: func(cctx *cli.Context) error {
		n, err := newNode(cctx.Context)
		if err != nil {
			return err
		}
		defer n.Close()

		p, err := n.geotrust.LoadPolicy(cctx.Context)
		if err != nil {
			return describe(err)
		}
		renderPolicy(cctx.App.Writer, p, cctx.Args().Slice())
		return nil
	},
}

var callCmd = &cli.Command{
	Name:      "call",
	Usage:     "Invoke any contract function",
	ArgsUsage: "<function> [arg...]",
	Description: "Arguments take an optional type prefix: u32, i32, u64, i64, bool, str, sym, bytes (hex), addr, void.\n" +
		"Without a prefix, integers become u32, true/false become bool and G.../C... addresses become addresses.",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "read-only",
			Usage: "only simulate the call, even for functions that change state",
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() < 1 {
			return fmt.Errorf("function name is required")
		}
		function := cctx.Args().First()
		args := make([]any, 0, cctx.NArg()-1)
		for _, raw := range cctx.Args().Tail() {
			v, err := parseArg(raw)
			if err != nil {
				return err
			}
			args = append(args, v)
		}

		n, err := newNode(cctx.Context)
		if err != nil {
			return err
		}
		defer n.Close()

		mode := contract.ModeOf(function)
		if cctx.Bool("read-only") {
			mode = contract.ReadOnly
		}
		if mode == contract.Write {
			if err := n.requireSigner(); err != nil {
				return err
			}
		}

		res := n.invoker.InvokeMode(cctx.Context, mode, function, args...)
		renderResult(cctx.App.Writer, res)
		return res.Err()
	},
}

var createSessionCmd = &cli.Command{
	Name:  "create-session",
	Usage: "Create a new session",
	Action: func(cctx *cli.Context) error {
		n, err := newNode(cctx.Context)
		if err != nil {
			return err
		}
		defer n.Close()
		if err := n.requireSigner(); err != nil {
			return err
		}

		id, res := n.geotrust.CreateSession(cctx.Context)
		renderResult(cctx.App.Writer, res)
		if res.Outcome == contract.OutcomeOK {
			fmt.Fprintf(cctx.App.Writer, "created session %d\n", id) // nolint:errcheck
		}
		return res.Err()
	},
}

var joinSessionCmd = &cli.Command{
	Name:  "join-session",
	Usage: "Join a waiting session",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "session", Usage: "session id", Required: true},
		&cli.UintFlag{Name: "cell", Usage: "area cell id", Required: true},
		&cli.StringFlag{Name: "country", Usage: "country as ISO 3166-1 numeric or alpha-2 code", Required: true},
		&cli.StringFlag{Name: "tag", Usage: "32-byte asset tag as hex", Required: true},
		&cli.StringFlag{Name: "caller", Usage: "joining account (default: the signer)"},
		&cli.StringFlag{Name: "proof", Usage: "location proof as hex"},
		&cli.StringFlag{Name: "inputs", Usage: "comma separated proof public inputs (default: the cell id)"},
	},
	Action: func(cctx *cli.Context) error {
		req, err := joinRequest(cctx)
		if err != nil {
			return err
		}

		n, err := newNode(cctx.Context)
		if err != nil {
			return err
		}
		defer n.Close()
		if err := n.requireSigner(); err != nil {
			return err
		}

		res := n.geotrust.JoinSession(cctx.Context, req)
		renderResult(cctx.App.Writer, res)
		return res.Err()
	},
}

var resolveMatchCmd = &cli.Command{
	Name:      "resolve-match",
	Usage:     "Resolve an active session",
	ArgsUsage: "<id>",
	Action: func(cctx *cli.Context) error {
		id, err := sessionIDArg(cctx)
		if err != nil {
			return err
		}
		n, err := newNode(cctx.Context)
		if err != nil {
			return err
		}
		defer n.Close()
		if err := n.requireSigner(); err != nil {
			return err
		}

		match, res := n.geotrust.ResolveMatch(cctx.Context, id)
		renderResult(cctx.App.Writer, res)
		if match != nil {
			renderMatch(cctx.App.Writer, *match)
		}
		return res.Err()
	},
}

func sessionIDArg(cctx *cli.Context) (uint32, error) {
	if cctx.NArg() != 1 {
		return 0, fmt.Errorf("session id is required")
	}
	id, err := strconv.ParseUint(cctx.Args().First(), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid session id '%s'", cctx.Args().First())
	}
	return uint32(id), nil
}

func joinRequest(cctx *cli.Context) (contract.JoinRequest, error) {
	country, ok := policy.ParseCode(cctx.String("country"))
	if !ok {
		return contract.JoinRequest{}, fmt.Errorf("unknown country '%s'", cctx.String("country"))
	}

	tag, err := hexutil.Decode(cctx.String("tag"))
	if err != nil || len(tag) != 32 {
		return contract.JoinRequest{}, fmt.Errorf("asset tag must be 32 bytes of 0x-prefixed hex")
	}

	req := contract.JoinRequest{
		Caller:    cctx.String("caller"),
		SessionID: uint32(cctx.Uint("session")),
		CellID:    uint32(cctx.Uint("cell")),
		Country:   country,
	}
	copy(req.AssetTag[:], tag)

	if cctx.IsSet("proof") {
		proof, err := hexutil.Decode(cctx.String("proof"))
		if err != nil {
			return contract.JoinRequest{}, fmt.Errorf("invalid proof: %w", err)
		}
		inputs := []uint32{req.CellID}
		if cctx.IsSet("inputs") {
			if inputs, err = parseInputs(cctx.String("inputs")); err != nil {
				return contract.JoinRequest{}, err
			}
		}
		req.Proof = &typedvalue.LocationProof{Proof: proof, PublicInputs: inputs}
	}
	return req, nil
}

// describedError shows a fault by its user-facing description and keeps the
// fault in its chain.
type describedError struct {
	msg string
	err error
}

func (e *describedError) Error() string { return e.msg }
func (e *describedError) Unwrap() error { return e.err }

// describe turns a contract fault into the message shown to the user.
func describe(err error) error {
	var f *contract.Fault
	if errors.As(err, &f) {
		return &describedError{msg: contract.Result{Outcome: contract.OutcomeFault, Fault: f}.Description(), err: err}
	}
	return err
}

// exitCode is 1 for usage and configuration errors. Faults get a code of
// their own so scripts can tell a refusal from an outage.
func exitCode(err error) int {
	switch contract.FaultKindOf(err) {
	case "":
		return 1
	case contract.SimulationRejected, contract.SubmissionRejected, contract.CountryNotAllowed:
		return 2
	case contract.AccountUnavailable, contract.WireFormatMismatch:
		return 3
	default:
		return 4
	}
}
