package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipshrink/internal/control"
	"go.klb.dev/clipshrink/internal/ipc"
	"go.klb.dev/clipshrink/internal/message"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "List, read or change transcode settings",
		Long: `Manage the persisted transcode settings in settings.toml.

Keys: max_width, use_custom_height, max_height, output_format, quality,
strip_metadata, auto_shrink.

With a daemon running, changes go through it and apply immediately.
Otherwise settings.toml is edited directly.`,
	}

	cmd.AddCommand(
		newConfigSubCmd("list", "Show all settings", cobra.NoArgs, func(ctx context.Context, v *viper.Viper, _ []string) error {
			settings, err := configList(ctx, v)
			if err != nil {
				return err
			}
			printSettings(settings)
			return nil
		}),
		newConfigSubCmd("get KEY", "Print one setting", cobra.ExactArgs(1), func(ctx context.Context, v *viper.Viper, args []string) error {
			val, err := configGet(ctx, v, args[0])
			if err != nil {
				return err
			}
			fmt.Println(val)
			return nil
		}),
		newConfigSubCmd("set KEY VALUE", "Change one setting", cobra.ExactArgs(2), func(ctx context.Context, v *viper.Viper, args []string) error {
			val, err := configSet(ctx, v, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%s = %s\n", args[0], val)
			return nil
		}),
	)
	return cmd
}

func newConfigSubCmd(use, short string, args cobra.PositionalArgs, run func(context.Context, *viper.Viper, []string) error) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindViper(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(v)
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			return run(ctx, v, args)
		},
	}
	cmd.Flags().Bool("local", false, "edit settings.toml even if a daemon is running")
	addSettingsFlag(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)
	return cmd
}

func useDaemon(v *viper.Viper) bool {
	return !v.GetBool("local") && v.GetString("settings") == "" && ipc.IsRunning()
}

func configList(ctx context.Context, v *viper.Viper) ([]message.Setting, error) {
	if useDaemon(v) {
		return control.NewClient().ConfigList(ctx)
	}
	s, err := openSettings(v)
	if err != nil {
		return nil, err
	}
	out := make([]message.Setting, 0, len(s.Keys()))
	for _, k := range s.Keys() {
		val, err := s.Get(k)
		if err != nil {
			return nil, err
		}
		out = append(out, message.Setting{Key: k, Value: val})
	}
	return out, nil
}

func configGet(ctx context.Context, v *viper.Viper, key string) (string, error) {
	if useDaemon(v) {
		return control.NewClient().ConfigGet(ctx, key)
	}
	s, err := openSettings(v)
	if err != nil {
		return "", err
	}
	return s.Get(key)
}

func configSet(ctx context.Context, v *viper.Viper, key, value string) (string, error) {
	if useDaemon(v) {
		return control.NewClient().ConfigSet(ctx, key, value)
	}
	s, err := openSettings(v)
	if err != nil {
		return "", err
	}
	if _, err := s.Set(key, value); err != nil {
		return "", err
	}
	return s.Get(key)
}
