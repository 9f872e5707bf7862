/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// fcw drives a Fabric channel from the command line: channel creation and
// join, chaincode lifecycle, invocation and query, and block events.
package main

import (
	reqContext "context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fcw-sdk/fabric-chain/pkg/chain"
	"github.com/fcw-sdk/fabric-chain/pkg/common/logging"
	"github.com/fcw-sdk/fabric-chain/pkg/common/metrics"
	"github.com/fcw-sdk/fabric-chain/pkg/core/config"
	"github.com/fcw-sdk/fabric-chain/pkg/core/config/endpoint"
)

var logger = logging.NewLogger("fcw/cmd")

const (
	configFlag      = "config"
	metricsAddrFlag = "metrics-addr"
	goPathFlag      = "gopath"

	// toggles read from FCW_USE_TLS and FCW_USE_CA
	useTLSKey = "use_tls"
	useCAKey  = "use_ca"
)

// cmdEnv holds what every subcommand shares
type cmdEnv struct {
	v        *viper.Viper
	registry *prometheus.Registry
	metrics  *http.Server
}

func newCmdEnv() *cmdEnv {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	// BindEnv only fails without a key
	_ = v.BindEnv(useTLSKey)
	_ = v.BindEnv(useCAKey)
	return &cmdEnv{v: v, registry: prometheus.NewRegistry()}
}

func newMainCmd(env *cmdEnv) *cobra.Command {
	mainCmd := &cobra.Command{
		Use:           "fcw",
		Short:         "Operate a Fabric channel: channel|chaincode|events.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return env.stopMetrics()
		},
	}

	flags := mainCmd.PersistentFlags()
	flags.StringP(configFlag, "c", "", "Path to the client configuration file (yaml or json)")
	flags.String(metricsAddrFlag, "", "Address to serve Prometheus metrics on, disabled when empty")
	flags.String(goPathFlag, "", "GOPATH chaincode paths are resolved against, $GOPATH when empty")
	for _, name := range []string{configFlag, metricsAddrFlag, goPathFlag} {
		if err := env.v.BindPFlag(name, flags.Lookup(name)); err != nil {
			logger.Fatalf("Could not bind flag '%s': %s", name, err)
		}
	}

	mainCmd.AddCommand(channelCmd(env))
	mainCmd.AddCommand(chaincodeCmd(env))
	mainCmd.AddCommand(eventsCmd(env))
	return mainCmd
}

// loadConfig reads the configuration file and applies the FCW_USE_TLS and
// FCW_USE_CA toggles.
func (env *cmdEnv) loadConfig() (*config.Config, error) {
	path := env.v.GetString(configFlag)
	if path == "" {
		return nil, errors.New("a configuration file is required (--config or FCW_CONFIG)")
	}
	cfg, err := config.FromFile(path)
	if err != nil {
		return nil, err
	}
	applyToggles(cfg, env.v)

	level, err := logging.LogLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logging.Initialize(logging.Options{Format: cfg.Logging.Format, DefaultLevel: &level})
	return cfg, nil
}

// applyToggles switches endpoints between grpc and grpcs and selects the
// enrollment form when the toggles are set.
func applyToggles(cfg *config.Config, v *viper.Viper) {
	if v.IsSet(useTLSKey) {
		useTLS := v.GetBool(useTLSKey)
		cfg.Orderer = toggleTLS(cfg.Orderer, useTLS)
		for i := range cfg.Peers {
			cfg.Peers[i] = toggleTLS(cfg.Peers[i], useTLS)
		}
	}

	if v.IsSet(useCAKey) {
		e := &cfg.Enrollment
		if v.GetBool(useCAKey) {
			e.Key, e.Cert, e.KeyPath, e.CertPath = "", "", "", ""
		} else {
			e.EnrollmentSecret = ""
			cfg.CAURL = ""
		}
	}
}

func toggleTLS(ep config.EndpointConfig, useTLS bool) config.EndpointConfig {
	ep.URL = withScheme(ep.URL, useTLS)
	ep.EventURL = withScheme(ep.EventURL, useTLS)
	if !useTLS {
		ep.PemPath = ""
	}
	return ep
}

func withScheme(url string, secure bool) string {
	if url == "" {
		return url
	}
	if secure {
		return "grpcs://" + endpoint.ToAddress(url)
	}
	return "grpc://" + endpoint.ToAddress(url)
}

// newChain loads the configuration and creates the chain. Metrics are served
// when --metrics-addr is set.
func (env *cmdEnv) newChain(ctx reqContext.Context) (*chain.Chain, error) {
	cfg, err := env.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := env.startMetrics(); err != nil {
		return nil, err
	}
	return chain.New(ctx, cfg,
		chain.WithMetricsProvider(&metrics.PrometheusProvider{Registerer: env.registry}),
		chain.WithGoPath(env.v.GetString(goPathFlag)),
	)
}

func (env *cmdEnv) startMetrics() error {
	addr := env.v.GetString(metricsAddrFlag)
	if addr == "" || env.metrics != nil {
		return nil
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s failed", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(env.registry, promhttp.HandlerOpts{}))
	env.metrics = &http.Server{Handler: mux}
	go func() {
		if err := env.metrics.Serve(lis); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics server stopped: %s", err)
		}
	}()
	logger.Infof("serving metrics on %s", lis.Addr())
	return nil
}

func (env *cmdEnv) stopMetrics() error {
	if env.metrics == nil {
		return nil
	}
	err := env.metrics.Close()
	env.metrics = nil
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(reqContext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newMainCmd(newCmdEnv()).ExecuteContext(ctx); err != nil {
		logger.Errorf("%s", err)
		stop()
		os.Exit(1)
	}
}
