package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/control4-bridge/internal/pkg/handlers"
	"github.com/jake-scott/control4-bridge/internal/pkg/logging"
	"github.com/jake-scott/control4-bridge/internal/pkg/media"
	"github.com/jake-scott/control4-bridge/internal/pkg/metrics"
	"github.com/jake-scott/control4-bridge/internal/pkg/mqttbridge"
	"github.com/jake-scott/control4-bridge/pkg/middlewares"
)

var _serverCmdOpts struct {
	httpPort        uint16
	tlsCertPath     string
	tlsKeyPath      string
	gracefulTimeout time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	commandTimeout  time.Duration
	scanInterval    time.Duration
	corsOrigins     []string
	mediaProxies    []string
	logRequests     bool

	mqttBroker        string
	mqttClientID      string
	mqttUsername      string
	mqttPassword      string
	mqttPrefix        string
	mqttQoS           uint8
	mqttMaxConcurrent int
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Poll the director and serve the entity API",

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doServer(); err != nil {
			return err
		}

		return nil
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags("director.host", "control4.username", "control4.password")
	},
}

func init() {
	serverCmd.Flags().Uint16Var(&_serverCmdOpts.httpPort, "http-port", 8080, "HTTP port number")
	serverCmd.Flags().StringVar(&_serverCmdOpts.tlsCertPath, "tls-cert", "", "TLS certificate file, serve plain HTTP if not set")
	serverCmd.Flags().StringVar(&_serverCmdOpts.tlsKeyPath, "tls-key", "", "TLS key file")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.gracefulTimeout, "graceful-timeout", time.Second*15, "duration to wait for server to finish, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.readTimeout, "read-timeout", time.Second*15, "duration to wait for request read, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.writeTimeout, "write-timeout", time.Second*60, "duration to wait for request write, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.commandTimeout, "command-timeout", time.Second*20, "maximum duration of an entity command, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.scanInterval, "scan-interval", time.Second*5, "director polling interval, eg. 5s")
	serverCmd.Flags().StringSliceVar(&_serverCmdOpts.corsOrigins, "cors-origin", nil, "allowed CORS origin, may be repeated (default any)")
	serverCmd.Flags().StringSliceVar(&_serverCmdOpts.mediaProxies, "media-proxy", media.DefaultMediaProxies, "item proxies set up as media players")
	serverCmd.Flags().BoolVar(&_serverCmdOpts.logRequests, "log-requests", false, "log requests and responses (only in debug mode)")

	serverCmd.Flags().StringVar(&_serverCmdOpts.mqttBroker, "mqtt-broker", "", "MQTT broker URL, eg. tcp://broker:1883 (MQTT disabled if not set)")
	serverCmd.Flags().StringVar(&_serverCmdOpts.mqttClientID, "mqtt-client-id", "", "MQTT client ID (default random)")
	serverCmd.Flags().StringVar(&_serverCmdOpts.mqttUsername, "mqtt-username", "", "MQTT user name")
	serverCmd.Flags().StringVar(&_serverCmdOpts.mqttPassword, "mqtt-password", "", "MQTT password")
	serverCmd.Flags().StringVar(&_serverCmdOpts.mqttPrefix, "mqtt-prefix", "control4", "MQTT topic prefix")
	serverCmd.Flags().Uint8Var(&_serverCmdOpts.mqttQoS, "mqtt-qos", 1, "MQTT QoS for state and command topics")
	serverCmd.Flags().IntVar(&_serverCmdOpts.mqttMaxConcurrent, "mqtt-max-concurrent", 4, "maximum MQTT commands run at once")

	errPanic(viper.GetViper().BindPFlag("http.port", serverCmd.Flags().Lookup("http-port")))
	errPanic(viper.GetViper().BindPFlag("http.cert", serverCmd.Flags().Lookup("tls-cert")))
	errPanic(viper.GetViper().BindPFlag("http.key", serverCmd.Flags().Lookup("tls-key")))
	errPanic(viper.GetViper().BindPFlag("http.graceful-timeout", serverCmd.Flags().Lookup("graceful-timeout")))
	errPanic(viper.GetViper().BindPFlag("http.read-timeout", serverCmd.Flags().Lookup("read-timeout")))
	errPanic(viper.GetViper().BindPFlag("http.write-timeout", serverCmd.Flags().Lookup("write-timeout")))
	errPanic(viper.GetViper().BindPFlag("http.cors-origins", serverCmd.Flags().Lookup("cors-origin")))
	errPanic(viper.GetViper().BindPFlag("director.command-timeout", serverCmd.Flags().Lookup("command-timeout")))
	errPanic(viper.GetViper().BindPFlag("poll.scan-interval", serverCmd.Flags().Lookup("scan-interval")))
	errPanic(viper.GetViper().BindPFlag("media.proxies", serverCmd.Flags().Lookup("media-proxy")))
	errPanic(viper.GetViper().BindPFlag("logging.log-requests", serverCmd.Flags().Lookup("log-requests")))
	errPanic(viper.GetViper().BindPFlag("mqtt.broker", serverCmd.Flags().Lookup("mqtt-broker")))
	errPanic(viper.GetViper().BindPFlag("mqtt.client-id", serverCmd.Flags().Lookup("mqtt-client-id")))
	errPanic(viper.GetViper().BindPFlag("mqtt.username", serverCmd.Flags().Lookup("mqtt-username")))
	errPanic(viper.GetViper().BindPFlag("mqtt.password", serverCmd.Flags().Lookup("mqtt-password")))
	errPanic(viper.GetViper().BindPFlag("mqtt.prefix", serverCmd.Flags().Lookup("mqtt-prefix")))
	errPanic(viper.GetViper().BindPFlag("mqtt.qos", serverCmd.Flags().Lookup("mqtt-qos")))
	errPanic(viper.GetViper().BindPFlag("mqtt.max-concurrent", serverCmd.Flags().Lookup("mqtt-max-concurrent")))

	rootCmd.AddCommand(serverCmd)
}

func setupPlatforms(ctx context.Context, d media.Director) (*media.Registry, error) {
	project, err := media.LoadProject(ctx, d)
	if err != nil {
		return nil, err
	}

	interval := viper.GetDuration("poll.scan-interval")

	registry := media.NewRegistry()
	registry.Add(media.SetupRooms(ctx, d, project, interval))
	registry.Add(media.SetupMediaPlayers(ctx, d, project, interval, viper.GetStringSlice("media.proxies")))

	for _, p := range registry.Platforms() {
		logging.Logger(ctx).Infof("platform %s: %d entities", p.Name, len(p.Players))
	}

	return registry, nil
}

func startMQTT(ctx context.Context, wg *sync.WaitGroup, registry *media.Registry) (mqttbridge.Publisher, error) {
	broker := viper.GetString("mqtt.broker")
	if broker == "" {
		logging.Logger(ctx).Info("no mqtt broker configured, mqtt disabled")
		return nil, nil
	}

	prefix := viper.GetString("mqtt.prefix")
	qos := byte(viper.GetUint("mqtt.qos"))

	client, err := mqttbridge.Connect(mqttbridge.ClientConfig{
		Broker:      broker,
		ClientID:    viper.GetString("mqtt.client-id"),
		Username:    viper.GetString("mqtt.username"),
		Password:    viper.GetString("mqtt.password"),
		QoS:         qos,
		Timeout:     viper.GetDuration("director.api-timeout"),
		StatusTopic: mqttbridge.StatusTopic(prefix),
	})
	if err != nil {
		return nil, err
	}

	bridge := mqttbridge.New(client, registry, mqttbridge.Config{
		Prefix:         prefix,
		QoS:            qos,
		MaxConcurrent:  viper.GetInt("mqtt.max-concurrent"),
		CommandTimeout: viper.GetDuration("director.command-timeout"),
	})

	// the client keeps the subscription and retries it on the next connect
	if err := bridge.Start(ctx); err != nil {
		logging.Logger(ctx).WithError(err).Warn("mqtt: subscribing to command topics")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		bridge.Run(ctx)
	}()

	return client, nil
}

func newRouter(registry *media.Registry) (*mux.Router, error) {
	var logRequests bool
	if viper.GetBool("logging.log-requests") {
		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			logRequests = true
		} else {
			logging.Logger(nil).Warn("log-requests ignored when not in debug mode")
		}
	}

	promRegistry, err := metrics.NewRegistry()
	if err != nil {
		return nil, err
	}

	eh := handlers.NewEntityHandler(registry, viper.GetDuration("director.command-timeout"))

	r := mux.NewRouter()
	r.Use(middlewares.NewCorsMw(middlewares.CorsOptions(viper.GetStringSlice("http.cors-origins"))))
	r.Use(middlewares.NewLoggingMw(logRequests))
	r.Use(middlewares.NewRecoveryMw(func(interface{}) { metrics.HandlerPanics.Inc() }))
	r.Use(middlewares.NewCorrelationMw("X-Correlation-ID"))
	r.Use(middlewares.NewMetricsMw(metrics.HTTPRequests))
	eh.Routes(r)
	r.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r, nil
}

func doServer() error {
	wait := viper.GetDuration("http.graceful-timeout")
	port := viper.GetUint("http.port")
	certFile := expandPath(viper.GetString("http.cert"))
	keyFile := expandPath(viper.GetString("http.key"))

	// context to stop the poll and command loops
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := newSession(ctx)
	if err != nil {
		return err
	}
	helper := newDirectorHelper(session)

	registry, err := setupPlatforms(ctx, helper)
	if err != nil {
		return err
	}

	// wait group for the poll and command loops
	var wg sync.WaitGroup

	for _, p := range registry.Platforms() {
		c := p.Coordinator
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Run(ctx)
		}()
	}

	mqttClient, err := startMQTT(ctx, &wg, registry)
	if err != nil {
		cancel()
		wg.Wait()
		return err
	}

	r, err := newRouter(registry)
	if err != nil {
		cancel()
		wg.Wait()
		return err
	}

	s := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		ReadTimeout:  viper.GetDuration("http.read-timeout"),
		WriteTimeout: viper.GetDuration("http.write-timeout"),
		IdleTimeout:  time.Second * 60,
		Handler:      r,
	}

	logging.Logger(nil).Infof("Serving on port %d", port)
	go func() {
		var err error
		if certFile != "" && keyFile != "" {
			err = s.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = s.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logging.Logger(nil).WithError(err).Error("running server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal
	<-c
	logging.Logger(nil).Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), wait)
	defer shutdownCancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		logging.Logger(nil).WithError(err).Errorf("shutting down")
	}

	// stop polling, then wait for in-flight commands
	cancel()
	wg.Wait()

	if mqttClient != nil {
		mqttClient.Close()
	}

	logging.Logger(nil).Info("exiting")
	return nil
}
