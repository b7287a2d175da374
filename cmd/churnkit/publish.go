package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rushteam/churnkit/artifact"
	"github.com/rushteam/churnkit/config"
	"github.com/rushteam/churnkit/store"
)

var publishDir string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Validate an artifact directory and push it to the Redis model store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(config.ModePublish); err != nil {
			return err
		}
		dir := publishDir
		if dir == "" {
			dir = cfg.Artifacts.Dir
		}

		rs, err := store.NewRedisStore(cfg.Artifacts.RedisAddr, cfg.Artifacts.RedisDB)
		if err != nil {
			return eris.Wrapf(err, "connect redis %s", cfg.Artifacts.RedisAddr)
		}
		defer rs.Close()

		manifest, err := artifact.Publish(cmd.Context(), artifact.NewFileSource(dir), rs, cfg.Artifacts.Prefix)
		if err != nil {
			return err
		}
		zap.L().Info("artifacts published",
			zap.String("dir", dir),
			zap.String("prefix", cfg.Artifacts.Prefix),
			zap.String("name", manifest.Name),
			zap.String("version", manifest.Version))
		return nil
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishDir, "dir", "", "artifact directory (default artifacts.dir)")
	rootCmd.AddCommand(publishCmd)
}
