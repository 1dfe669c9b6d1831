package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/yugabyte/build-gcc/internal/config"
	"github.com/yugabyte/build-gcc/internal/pipeline"
	"github.com/yugabyte/build-gcc/internal/registry"
)

var listCmd = &cobra.Command{
	Use:          "list",
	Short:        "List recorded builds",
	Long:         `List the builds recorded in the registry of the install parent directory.`,
	RunE:         runList,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func init() {
	listCmd.Flags().Bool("clear", false, "Remove every entry from the registry")
	listCmd.Flags().String("remove", "", "Remove the entry with this tag")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().LoadForBuild(cmd)
	if err != nil {
		return err
	}

	reg := registry.New(cfg.InstallParentDir)
	out := cmd.OutOrStdout()

	if clearAll, _ := cmd.Flags().GetBool("clear"); clearAll {
		if err := reg.Clear(); err != nil {
			return err
		}

		fmt.Fprintln(out, "Registry cleared")
		return nil
	}

	if tag, _ := cmd.Flags().GetString("remove"); tag != "" {
		if err := reg.Remove(tag); err != nil {
			return err
		}

		fmt.Fprintf(out, "Removed %s\n", tag)
		return nil
	}

	entries, err := reg.List()
	if err != nil {
		return err
	}

	count, size, err := reg.Stats()
	if err != nil {
		return err
	}

	printEntries(out, entries)
	fmt.Fprintf(out, "%d builds, %s of archives in %s\n", count, humanize.IBytes(uint64(size)), reg.Path())

	return nil
}

func printEntries(w io.Writer, entries []registry.Entry) {
	for _, e := range entries {
		fmt.Fprintln(w, color.Bold.Sprint(e.Tag))

		status := color.Yellow.Sprint("not published")
		if e.Published {
			status = color.Green.Sprint("published")
		}

		fmt.Fprintf(w, "  %s  %s/%d stages  %s\n",
			status, color.Cyan.Sprint(len(e.Stages)), pipeline.NumStages, e.UpdatedAt.Local().Format(time.DateTime))

		if len(e.Stages) > 0 {
			fmt.Fprintf(w, "  stages:  %s\n", strings.Join(e.Stages, ", "))
		}

		if e.InstallDir != "" {
			fmt.Fprintf(w, "  install: %s\n", e.InstallDir)
		}

		if e.Archive != "" {
			fmt.Fprintf(w, "  archive: %s\n", e.Archive)
		}
	}
}
