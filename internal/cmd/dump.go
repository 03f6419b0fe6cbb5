package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faisal-shah/logmerge/internal/buffer"
	"github.com/faisal-shah/logmerge/internal/diag"
	"github.com/faisal-shah/logmerge/internal/drainer"
	"github.com/faisal-shah/logmerge/internal/parser"
	"github.com/faisal-shah/logmerge/internal/store"
	"github.com/faisal-shah/logmerge/internal/tailer"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [paths...]",
	Short: "Merge the current contents of log files once and print them",
	Long: `Read every file once from the beginning, merge all records by timestamp,
and print the result. Incomplete trailing lines are left out.

Examples:
  logmerge dump a.log b.log
  logmerge dump "logs/*.log" --where severity=3 --columns timestamp,message`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	v, err := newView(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	files, err := resolveFiles(args, logger)
	if err != nil {
		return err
	}

	p := parser.New(v.schema, nil)
	buf := buffer.New()
	st := store.New()
	sink := diag.LogSink{Logger: logger}

	for _, path := range files {
		w := tailer.New(path, p, buf, tailer.Options{Logger: logger, Diag: sink})
		if _, err := w.Poll(cmd.Context()); err != nil {
			logger.Warn("skipping file", "file", path, "error", err)
		}
	}
	drainer.New(buf, st, 0, sink, nil).Drain()

	logger.Debug("dump merged", "records", st.Len(), "rejected", p.Rejected())
	if err := v.renderAll(st); err != nil {
		return err
	}
	if st.Len() == 0 && p.Rejected() > 0 {
		return fmt.Errorf("no lines matched schema %s (%d rejected)", v.schema.Name, p.Rejected())
	}
	return nil
}
