package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"opsportal/cmd/syncer"
	"opsportal/src/database"
	"opsportal/src/executors"
	"opsportal/src/notify"
	"opsportal/src/security"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Opsportal CMD"
	app.Usage = "The Opsportal command line interface"

	app.Commands = []cli.Command{
		syncerCMD,
		reconcileCMD,
		encryptCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	syncerCMD = cli.Command{
		Name:        "syncer",
		Usage:       "run the order sync loop",
		Action:      syncerAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the order sync loop without the portal API`,
	}
	reconcileCMD = cli.Command{
		Name:        "reconcile",
		Usage:       "run one full reconcile and exit",
		Action:      reconcileAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run a single deep reconcile cycle against the remote store`,
	}
	encryptCMD = cli.Command{
		Name:        "encrypt",
		Usage:       "encrypt a credential for env storage",
		Action:      encryptAction,
		ArgsUsage:   "<plaintext>",
		Flags:       []cli.Flag{},
		Description: `Encrypt a consumer key or secret with the configured store key`,
	}
)

func syncerAction(_ *cli.Context) error {

	logrus.Info("Starting syncer CMD")
	logrus.WithField("cmd", "syncer")

	s := &syncer.Syncer{}
	err := s.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

// reconcileAction runs one deep reconcile cycle, useful after downtime.
func reconcileAction(_ *cli.Context) error {

	logrus.Info("Starting reconcile CMD")
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	service, err := executors.NewDefaultSyncService(notify.NewHub())
	if err != nil {
		logrus.WithError(err).Error("Failed to build sync service")
		return err
	}

	stats, err := service.RunFullReconcile(context.Background())
	if err != nil {
		logrus.WithError(err).Error("Full reconcile failed")
		return err
	}

	logrus.WithFields(logrus.Fields{
		"fetched": stats.Fetched,
		"new":     stats.New,
		"updated": stats.Updated,
		"skipped": stats.Skipped,
		"errors":  stats.Errors,
	}).Info("Full reconcile finished")

	return nil
}

func encryptAction(c *cli.Context) error {
	plain := c.Args().First()
	if plain == "" {
		return cli.NewExitError("usage: encrypt <plaintext>", 1)
	}

	encoded, err := security.EncryptString(plain)
	if err != nil {
		logrus.WithError(err).Error("Failed to encrypt value")
		return err
	}

	fmt.Println(encoded)
	return nil
}
