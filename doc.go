// Package initshim is a minimal init process and systemctl stand-in for
// containers.
//
// It reads systemd-format unit files but implements only what a container
// running one long-lived service needs: the ExecStart=, ExecStop= and
// ExecReload= actions of service units, and path units that start a service
// when a watched file changes. Dependencies, ordering, sockets and cgroups
// are not supported.
//
// The Supervisor is process one. It starts the managed service, watches the
// registered path units and stops the managed service once on shutdown:
//
//	cfg, err := initshim.LoadConfig(viper.GetViper())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger, _ := initshim.NewLogger(cfg.Log)
//	err = initshim.NewSupervisor(cfg, logger).Run(ctx)
//
// # Control Surface
//
// The Multiplexer accepts systemctl invocations. start, stop, reload and
// restart run the actions of service units through the Controller; start
// and stop on a .path unit change the watched set. Every other verb is
// accepted and ignored so installer scripts never fail on it.
//
//	mux := initshim.NewMultiplexer(ctl, paths, logger)
//	mux.Dispatch(ctx, "start", "nginx")
//	mux.Dispatch(ctx, "daemon-reload") // accepted, nothing to do
//
// A systemctl running as its own process cannot reach the watcher of
// process one directly. Its RemoteActivator queues path requests in a spool
// under the runtime directory and sends SIGHUP to the PID recorded there.
//
// # Path Activation
//
// The PathWatcher subscribes to the parent directories of every watched
// path and starts the target unit when a change to exactly that path is
// reported. The PathManager replaces the watcher after every change to the
// WatchSet, so the new subscription always matches the set.
package initshim
