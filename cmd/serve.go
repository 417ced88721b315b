package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/showscrape/internal/api"
	"github.com/brogergvhs/showscrape/internal/config"
	"github.com/brogergvhs/showscrape/internal/util"
)

var (
	flagAddr         string
	flagCacheBackend string
	flagRedisAddr    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := util.InterruptContext(cmd.Context(), cmd.ErrOrStderr())
		defer cancel()

		a, err := newApp(ctx, config.Options{
			Addr:         flagAddr,
			CacheBackend: flagCacheBackend,
			RedisAddr:    flagRedisAddr,
		})
		if err != nil {
			return err
		}
		defer a.Close()

		a.log.Infof("config: %s", a.used)
		srv := api.NewServer(api.Config{
			Addr:            a.cfg.Server.Addr,
			Debug:           a.cfg.Debug,
			ReadTimeout:     a.cfg.Server.ReadTimeout,
			WriteTimeout:    a.cfg.Server.WriteTimeout,
			ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		}, a.eng, a.metrics, a.log)

		if err := srv.Run(ctx); err != nil && err != context.Canceled {
			return err
		}
		// Let in-flight background refreshes land before the stores close.
		a.eng.Wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().StringVar(&flagCacheBackend, "cache", "", "cache backend: memory or redis")
	serveCmd.Flags().StringVar(&flagRedisAddr, "redis-addr", "", "redis address for the redis cache backend")

	rootCmd.AddCommand(serveCmd)
}
