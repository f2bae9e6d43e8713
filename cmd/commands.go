package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"movelink/internal/conf"
	"movelink/internal/flog"
	"movelink/internal/server"
	"movelink/internal/service"
)

var (
	cfgPath  string
	simCount int
)

var rootCmd = &cobra.Command{
	Use:           "movelink",
	Short:         "motion controller telemetry server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the version and exit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config file")
	rootCmd.Flags().IntVar(&simCount, "sim-controllers", 4, "number of simulated controllers")
	rootCmd.AddCommand(versionCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg := conf.Default()
	if cfgPath != "" {
		var err error
		cfg, err = conf.LoadFromFile(cfgPath)
		if err != nil {
			return err
		}
	}

	flog.SetLevel(cfg.Log.Level)
	defer flog.Close()

	svc := service.New(Version, service.NewSimSource(simCount))
	srv, err := server.Start(cfg, svc)
	if err != nil {
		flog.Errorf("startup failed: %v", err)
		return err
	}
	svc.Attach(srv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go svc.Run(ctx, cfg.Devices.PollHz)

	<-ctx.Done()
	flog.Infof("signal received, shutting down")
	server.Stop()
	return nil
}
