// Package main is the viewlink entrypoint.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dev.c0redev.viewlink/internal/auth"
	"dev.c0redev.viewlink/internal/client"
	"dev.c0redev.viewlink/internal/config"
	"dev.c0redev.viewlink/internal/discovery"
	"dev.c0redev.viewlink/internal/identity"
	"dev.c0redev.viewlink/internal/idwords"
	"dev.c0redev.viewlink/internal/proto"
	"dev.c0redev.viewlink/internal/server"
	"dev.c0redev.viewlink/internal/transport"
)

var (
	logger logrus.FieldLogger = logrus.StandardLogger()

	logLevel  string
	backend   string
	addr      string
	username  string
	useCipher bool

	rootCmd = &cobra.Command{
		Use:   "viewlink",
		Short: "Remote-display protocol engine.",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return errors.Wrap(err, "parse log level failed")
			}
			logrus.SetLevel(level)
			return nil
		},
	}

	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Starts a viewlink server.",
		RunE:  runServer,
	}

	clientCmd = &cobra.Command{
		Use:   "client",
		Short: "Connects a viewlink client.",
		RunE:  runClient,
	}

	addUserCmd = &cobra.Command{
		Use:   "adduser <username> <password>",
		Short: "Adds a user to the identity database.",
		Args:  cobra.ExactArgs(2),
		RunE:  runAddUser,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "logrus level")
	rootCmd.PersistentFlags().StringVar(&backend, "transport", "tcp", "transport backend (tcp, quic)")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:14500", "listen or connect address")
	clientCmd.Flags().StringVar(&username, "username", "viewer", "username for the hello")
	clientCmd.Flags().BoolVar(&useCipher, "cipher", false, "request an encrypted session")
	rootCmd.AddCommand(serverCmd, clientCmd, addUserCmd)
}

// newAuthFactory builds the per-connection authenticator from
// VIEWLINK_AUTH: none (default), password (VIEWLINK_AUTH_PASSWORD) or
// sqlite (VIEWLINK_AUTH_DB).
func newAuthFactory(settings config.Settings) (func(string) auth.Authenticator, func() error, error) {
	noop := func() error { return nil }
	switch mode := settings.String("AUTH", "none"); mode {
	case "none":
		return func(string) auth.Authenticator { return auth.NewNone() }, noop, nil
	case "password":
		password := settings.String("AUTH_PASSWORD", "")
		if password == "" {
			return nil, nil, errors.New("VIEWLINK_AUTH_PASSWORD not set")
		}
		return func(string) auth.Authenticator { return auth.NewPassword([]byte(password)) }, noop, nil
	case "sqlite":
		path := settings.String("AUTH_DB", "viewlink.db")
		db, err := identity.Open(path)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open identity db failed")
		}
		return func(username string) auth.Authenticator {
			return auth.NewSys(username, db)
		}, db.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown auth mode %q", mode)
	}
}

// instanceName resolves the advertised server name. An explicit name
// is kept as-is, but names outside the word lists get a warning since
// operators usually expect the adjective-noun shape everywhere.
func instanceName(settings config.Settings) string {
	name := settings.String("NAME", "")
	if name == "" {
		return idwords.GenerateName()
	}
	if !idwords.ValidName(name) {
		logger.WithField("name", name).Warn("instance name is not an adjective-noun pair")
	}
	return name
}

func runServer(cmd *cobra.Command, _ []string) error {
	settings := config.FromEnv()
	newAuth, closeAuth, err := newAuthFactory(settings)
	if err != nil {
		return err
	}
	defer closeAuth()

	ln, err := transport.Listen(backend, addr, nil)
	if err != nil {
		return errors.Wrap(err, "listen failed")
	}

	srv := server.New(server.Options{
		Settings:         settings,
		NewAuthenticator: newAuth,
		Registry:         discovery.NewRegistry(settings),
		Name:             instanceName(settings),
		Level:            uint8(settings.Int("COMPRESSION_LEVEL", 1, 0, proto.MaxCompressionLevel)),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = srv.Close()
	}()
	return srv.Serve(ln)
}

func runClient(cmd *cobra.Command, _ []string) error {
	settings := config.FromEnv()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var password []byte
	if pw := settings.String("PASSWORD", ""); pw != "" {
		password = []byte(pw)
	}
	c, err := client.Dial(ctx, backend, addr, client.Options{
		Username: username,
		Password: password,
		Cipher:   useCipher,
		Level:    uint8(settings.Int("COMPRESSION_LEVEL", 1, 0, proto.MaxCompressionLevel)),
	})
	if err != nil {
		return errors.Wrap(err, "connect failed")
	}
	defer c.Close()
	logger.WithField("addr", addr).Info("connected")

	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	// Ask for a first full refresh, then just log what arrives.
	if err := c.Damage(1, 0, 0, 1920, 1080); err != nil {
		return err
	}
	return c.Run(func(d *proto.Draw) error {
		logger.WithFields(logrus.Fields{
			"wid":      d.WID,
			"seq":      d.Seq,
			"encoding": d.Encoding,
			"bytes":    len(d.Data),
		}).Info("draw")
		return nil
	})
}

func runAddUser(_ *cobra.Command, args []string) error {
	settings := config.FromEnv()
	db, err := identity.Open(settings.String("AUTH_DB", "viewlink.db"))
	if err != nil {
		return errors.Wrap(err, "open identity db failed")
	}
	defer db.Close()
	if err := db.AddUser(args[0], args[1]); err != nil {
		return err
	}
	logger.WithField("username", args[0]).Info("user added")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
