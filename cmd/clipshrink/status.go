package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipshrink/internal/control"
	"go.klb.dev/clipshrink/internal/ipc"
	"go.klb.dev/clipshrink/internal/message"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running daemon's state",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindViper(cmd, v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(v)
			return runStatus(cmd.Context(), v)
		},
	}

	cmd.Flags().Bool("json", false, "output raw JSON")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runStatus(ctx context.Context, v *viper.Viper) error {
	if !ipc.IsRunning() {
		return fmt.Errorf("no clipshrink daemon listening on %s (start one with \"clipshrink watch\")", ipc.SocketPath())
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	st, err := control.NewClient().Status(ctx)
	if err != nil {
		return err
	}

	if v.GetBool("json") {
		enc, _ := json.MarshalIndent(st, "", "  ")
		fmt.Println(string(enc))
		return nil
	}

	printStatus(st)
	return nil
}

func printStatus(st *message.Status) {
	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Version:\t%s\n", st.Version)
	if !st.StartedAt.IsZero() {
		fmt.Fprintf(w, "Started:\t%s (%s)\n", st.StartedAt.UTC().Format(time.RFC3339), fmtAge(st.StartedAt))
	}
	fmt.Fprintf(w, "Clipboard:\t%s\n", st.Backend)
	fmt.Fprintf(w, "Monitor:\t%s\n", st.MonitorState)
	fmt.Fprintf(w, "Change count:\t%d (baseline %d)\n", st.ChangeCount, st.Baseline)
	fmt.Fprintf(w, "HEIC:\t%s\n", yesNo(st.HEIC))
	fmt.Fprintf(w, "Shrinks:\t%d ok, %d failed, %d attempts\n", st.Shrunk, st.Failed, st.Attempts)
	fmt.Fprintf(w, "Saved:\t%s\n", fmtBytes(int(st.BytesSaved)))
	if n := st.LastNotification; n != nil {
		fmt.Fprintf(w, "Last:\t%s: %s\n", n.Title, n.Body)
	}
	fmt.Fprintln(w)
	_ = w.Flush()

	fmt.Printf("Settings (%s):\n", st.SettingsPath)
	printSettings(st.Settings)
}

func printSettings(settings []message.Setting) {
	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "KEY\tVALUE\n")
	_, _ = fmt.Fprintf(tw, "---\t-----\n")
	for _, s := range settings {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", s.Key, s.Value)
	}
	_ = tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func fmtAge(t time.Time) string {
	age := time.Since(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	if age < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	}
	return t.Format("2006-01-02 15:04")
}
