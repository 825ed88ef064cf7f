package main

import (
    "encoding/json"
    "errors"

    "github.com/spf13/cobra"

    cfgpkg "github.com/local/mangaview/internal/config"
    "github.com/local/mangaview/internal/queue"
    "github.com/local/mangaview/internal/statuscheck"
    "github.com/local/mangaview/internal/store"
)

func newCheckCmd(f *flags) *cobra.Command {
    var aws bool
    cmd := &cobra.Command{
        Use:   "check",
        Short: "Verify the configured Redis channel, override store and spool directory",
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg, err := cfgpkg.Load(f.configPath)
            if err != nil { return err }
            ctx := cmd.Context()

            opts := statuscheck.Options{SpoolDir: cfg.Source.SpoolDir, AWS: aws}
            if cfg.Queue.RedisURL != "" {
                q, err := queue.NewCommandQueue(cfg.Queue.RedisURL, cfg.Queue.CommandList, cfg.Queue.StatusChannel)
                if err != nil { return err }
                defer q.Close()
                opts.Redis = q
            }
            if cfg.Store.Target != "" {
                st, err := store.Open(ctx, cfg.Store.Target)
                if err != nil { return err }
                defer st.Close()
                opts.Store = st
            }

            sum := statuscheck.New(opts).Summary(ctx)
            enc := json.NewEncoder(cmd.OutOrStdout())
            enc.SetIndent("", "  ")
            if err := enc.Encode(sum); err != nil { return err }
            if !sum.OK() { return errors.New("one or more checks failed") }
            return nil
        },
    }
    cmd.Flags().BoolVar(&aws, "aws", false, "also resolve AWS credentials for s3:// references")
    return cmd
}
